package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/rolegate/pkg/capability"
	"github.com/jllopis/rolegate/pkg/core"
	"github.com/jllopis/rolegate/pkg/coretest"
	"github.com/jllopis/rolegate/pkg/orchestrator"
	"github.com/jllopis/rolegate/pkg/policy"
	"github.com/jllopis/rolegate/pkg/transform"
	"github.com/jllopis/rolegate/pkg/workflow"
)

func newCore(t *testing.T) *orchestrator.Core {
	t.Helper()
	p, err := policy.New(policy.Spec{ID: "hr_manager", Capabilities: []string{"nlp"}, DataScope: core.ScopeDomain})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	resolver, _ := policy.NewResolver(p)
	stub := coretest.NewStubProvider().Returning(map[string]any{"sentiment": "positive"})
	caps, err := capability.NewRegistry(map[string]core.Capability{"recommendation": "nlp"}, stub.Handler("nlp", "nlp"))
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	wf, _ := workflow.NewRegistry(workflow.Workflow{Name: "w", Steps: []string{"s"}, Roles: []string{"hr_manager"}})
	tr, _ := transform.New(transform.Entry{Role: "hr_manager", Scope: core.ScopeDomain})
	c, err := orchestrator.New(orchestrator.Registries{
		Resolver:     resolver,
		Capabilities: caps,
		Workflows:    wf,
		Transformer:  tr,
	}, orchestrator.WithStepFallback(workflow.Acknowledge))
	if err != nil {
		t.Fatalf("core: %v", err)
	}
	return c
}

func TestServerExposesCore(t *testing.T) {
	srv := NewServer("rolegate", "test", newCore(t))
	httpServer := mcpserver.NewTestStreamableHTTPServer(srv.MCPServer())
	defer httpServer.Close()

	client, err := NewClientWithStreamableHTTP(httpServer.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}

	res, err := client.CallTool(context.Background(), "dispatch", map[string]any{
		"kind":    "recommendation",
		"role":    "hr_manager",
		"payload": map[string]any{"text": "hi"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	var resp orchestrator.Response
	if err := json.Unmarshal([]byte(Text(res)), &resp); err != nil {
		t.Fatalf("decode: %v (%s)", err, Text(res))
	}
	if resp.Outcome != orchestrator.OutcomeSuccess || resp.Result["sentiment"] != "positive" {
		t.Fatalf("unexpected response %+v", resp)
	}

	res, err = client.CallTool(context.Background(), "run_workflow", map[string]any{"name": "w", "role": "hr_manager"})
	if err != nil || res.IsError {
		t.Fatalf("run_workflow: %v %+v", err, res)
	}

	res, err = client.CallTool(context.Background(), "evaluate_rules", map[string]any{"role": "stranger"})
	if err != nil {
		t.Fatalf("evaluate_rules: %v", err)
	}
	if !res.IsError {
		t.Fatalf("unknown role must be a tool error, got %s", Text(res))
	}
}
