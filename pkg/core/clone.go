// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package core

// CloneMap deep-copies nested maps and slices. Scalar values are shared.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// Clone returns a copy whose payload and metadata do not alias ec.
func (ec ExecutionContext) Clone() ExecutionContext {
	out := ec
	out.Payload = CloneMap(ec.Payload)
	out.Metadata = CloneMap(ec.Metadata)
	return out
}
