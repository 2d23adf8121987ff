// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	_ "embed"
)

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the built-in HR catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// DefaultYAML returns the source of the built-in catalog, a starting point
// for custom catalogs.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultCatalog...)
}
