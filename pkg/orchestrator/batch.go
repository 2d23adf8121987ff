// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Request is one entry of a batch dispatch.
type Request struct {
	Kind    string         `json:"kind"`
	Role    string         `json:"role"`
	Payload map[string]any `json:"payload,omitempty"`
}

// BatchItem is the settled result of one batch request. Exactly one of
// Response or Err describes it; Response is also set for errors so callers
// can render a uniform list.
type BatchItem struct {
	Index    int       `json:"index"`
	Response *Response `json:"response"`
	Err      error     `json:"-"`
}

// DispatchBatch dispatches all requests concurrently, at most batchLimit at
// a time, and settles every one: a failing item becomes an error record at
// its own index.
func (d *Dispatcher) DispatchBatch(ctx context.Context, requests []Request) []BatchItem {
	items := make([]BatchItem, len(requests))
	var g errgroup.Group
	if d.batchLimit > 0 {
		g.SetLimit(d.batchLimit)
	}
	for i, req := range requests {
		g.Go(func() error {
			resp, err := d.Dispatch(ctx, req.Kind, req.Role, req.Payload)
			if err != nil {
				resp = errorResponse(req.Kind, err)
			}
			items[i] = BatchItem{Index: i, Response: resp, Err: err}
			// Never fail the group: siblings must settle too.
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func errorResponse(kind string, err error) *Response {
	return &Response{
		Outcome:    OutcomeError,
		Operation:  kind,
		Confidence: 0,
		Result:     map[string]any{"error": err.Error()},
		Error:      err.Error(),
		Err:        err,
	}
}
