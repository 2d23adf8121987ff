package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jllopis/rolegate/pkg/core"
	rgerrors "github.com/jllopis/rolegate/pkg/errors"
)

func TestInitNone(t *testing.T) {
	shutdown, err := Init("test-service", "v0.0.1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitStdout(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := Init("test-service", "v0.0.1", Config{Exporter: "stdout", Output: &out, Environment: "test"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitRejectsBadExporter(t *testing.T) {
	if _, err := Init("svc", "v", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Init("svc", "v", Config{Exporter: "otlp"}); err == nil {
		t.Fatalf("expected missing endpoint error")
	}
}

func TestTraceHandlerAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "debug", "json"))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "dispatch", slog.String("role", "admin"))
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if rec["trace_id"] == nil || rec["span_id"] == nil {
		t.Fatalf("expected trace ids in record: %v", rec)
	}
}

func TestRunHandlerAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "info", "json"))

	ctx := core.WithRunID(context.Background(), "run-42")
	logger.InfoContext(ctx, "dispatch")
	logger.InfoContext(ctx, "explicit", slog.String(KeyRunID, "run-7"))
	logger.Info("no context")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("expected 3 records, got %d", len(lines))
	}
	want := []any{"run-42", "run-7", nil}
	for i, line := range lines {
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("decode log: %v", err)
		}
		if rec[KeyRunID] != want[i] {
			t.Errorf("record %d: expected run id %v, got %v", i, want[i], rec[KeyRunID])
		}
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(slog.New(NewHandler(&buf, "info", "text")), "rules")
	logger.Debug("hidden")
	logger.Info("shown")
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("component=rules")) {
		t.Fatalf("expected component attr, got %q", out)
	}
	if bytes.Contains([]byte(out), []byte("hidden")) {
		t.Fatalf("debug record should be filtered at info level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetricsWithMeter(mp.Meter("test"))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	ctx := context.Background()
	m.RecordDispatch(ctx, "recommendation", "hr_manager", "success", 3*time.Millisecond)
	m.RecordRule(ctx, "nitaqat_compliance_check", true, true)
	m.RecordStep(ctx, "employee_onboarding", "create_employee_record", false)
	m.RecordError(ctx, rgerrors.New(rgerrors.CodeCapabilityDenied, "denied", nil), "dispatcher")
	m.RecordError(ctx, errors.New("plain"), "dispatcher")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
		}
	}
	for _, want := range []string{"rolegate.dispatch.total", "rolegate.dispatch.duration", "rolegate.rules.outcomes", "rolegate.workflow.steps", "rolegate.errors.total"} {
		if !names[want] {
			t.Errorf("missing metric %s", want)
		}
	}
}

func TestNilMetricsNoop(t *testing.T) {
	var m *Metrics
	m.RecordDispatch(context.Background(), "x", "y", "z", time.Second)
	m.RecordError(context.Background(), errors.New("x"), "c")
}
