// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/rolegate/pkg/orchestrator"
)

// Server exposes the orchestration core as MCP tools: dispatch,
// evaluate_rules and run_workflow. Every call carries the caller's role.
type Server struct {
	mcpServer *server.MCPServer
	core      *orchestrator.Core
}

// NewServer creates an MCP server backed by core.
func NewServer(name, version string, core *orchestrator.Core) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		core:      core,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts a Streamable HTTP server on addr.
func (s *Server) ServeHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.mcpServer).Start(addr)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("dispatch",
		mcp.WithDescription("Dispatch an operation to the capability provider allowed for the role"),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Operation kind, e.g. recommendation")),
		mcp.WithString("role", mcp.Required(), mcp.Description("Role of the caller")),
		mcp.WithObject("payload", mcp.Description("Operation payload")),
	), s.dispatch)

	s.mcpServer.AddTool(mcp.NewTool("evaluate_rules",
		mcp.WithDescription("Evaluate the business rules applicable to the role"),
		mcp.WithString("role", mcp.Required()),
		mcp.WithObject("payload"),
	), s.evaluateRules)

	s.mcpServer.AddTool(mcp.NewTool("run_workflow",
		mcp.WithDescription("Run a named workflow for the role"),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("role", mcp.Required()),
		mcp.WithObject("payload"),
	), s.runWorkflow)
}

func (s *Server) dispatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	resp, err := s.core.Dispatch(ctx, stringArg(args, "kind"), stringArg(args, "role"), objectArg(args, "payload"))
	return toolResult(resp, err)
}

func (s *Server) evaluateRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	outcomes, err := s.core.EvaluateRules(ctx, stringArg(args, "role"), objectArg(args, "payload"))
	return toolResult(outcomes, err)
}

func (s *Server) runWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	report, err := s.core.RunWorkflow(ctx, stringArg(args, "name"), stringArg(args, "role"), objectArg(args, "payload"))
	return toolResult(report, err)
}

// toolResult reports core errors as tool errors so the protocol call itself
// succeeds and the client sees the typed message.
func toolResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func objectArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}
