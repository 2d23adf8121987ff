// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Text concatenates the text content of a tool result.
func Text(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
