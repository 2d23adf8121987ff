package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/rolegate/pkg/health"
)

func sampleEntries() []Entry {
	now := time.Now().UTC()
	return []Entry{
		{ID: "1", Kind: KindDispatch, Operation: "recommendation", Role: "hr_manager", Success: true, At: now},
		{ID: "2", Kind: KindWorkflow, Operation: "employee_onboarding", Role: "admin", Success: false, Error: "step failed", At: now.Add(time.Second)},
		{ID: "3", Kind: KindDispatch, Operation: "analysis", Role: "admin", Success: true, Duration: 5 * time.Millisecond, At: now.Add(2 * time.Second)},
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	for _, e := range sampleEntries() {
		if err := sink.Record(context.Background(), e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := sink.List(context.Background(), Filter{Kind: KindDispatch})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" {
		t.Fatalf("unexpected dispatch entries: %+v", got)
	}
	got, _ = sink.List(context.Background(), Filter{Role: "admin", Limit: 1})
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("unexpected limited entries: %+v", got)
	}
}

func TestSQLiteSink(t *testing.T) {
	sink, err := OpenSQLite("file:audit_sink_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer sink.Close()

	for _, e := range sampleEntries() {
		if err := sink.Record(context.Background(), e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := sink.List(context.Background(), Filter{Role: "admin", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 admin entries, got %d", len(got))
	}
	if got[0].Operation != "employee_onboarding" || got[0].Success {
		t.Fatalf("unexpected first entry %+v", got[0])
	}
	if got[1].Duration != 5*time.Millisecond {
		t.Fatalf("duration not round-tripped: %v", got[1].Duration)
	}
	if got[0].Error != "step failed" {
		t.Fatalf("unexpected error text %q", got[0].Error)
	}
	if r := sink.Check(context.Background()); r.Status != health.Healthy {
		t.Fatalf("expected healthy sink, got %+v", r)
	}
	_ = sink.Close()
	if r := sink.Check(context.Background()); r.Status != health.Unhealthy {
		t.Fatalf("expected closed sink to be unhealthy, got %+v", r)
	}
}

func TestNewSQLiteSinkNilDB(t *testing.T) {
	if _, err := NewSQLiteSink(nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

type failingSink struct{}

func (failingSink) Record(context.Context, Entry) error        { return errors.New("disk full") }
func (failingSink) List(context.Context, Filter) ([]Entry, error) { return nil, nil }

func TestRecorderStampsAndSwallowsErrors(t *testing.T) {
	mem := NewMemorySink()
	NewRecorder(mem, nil).Record(context.Background(), Entry{Kind: KindRules, Operation: "rules", Role: "admin"})
	got, _ := mem.List(context.Background(), Filter{})
	if len(got) != 1 || got[0].ID == "" || got[0].At.IsZero() {
		t.Fatalf("expected stamped entry, got %+v", got)
	}

	var buf bytes.Buffer
	rec := NewRecorder(failingSink{}, slog.New(slog.NewTextHandler(&buf, nil)))
	rec.Record(context.Background(), Entry{Kind: KindDispatch, Operation: "analysis"})
	if !strings.Contains(buf.String(), "disk full") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}

	var nilRec *Recorder
	nilRec.Record(context.Background(), Entry{})
}

func TestRecorderIgnoresCancelledContext(t *testing.T) {
	mem := NewMemorySink()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewRecorder(mem, nil).Record(ctx, Entry{Kind: KindDispatch, Operation: "analysis"})
	if got, _ := mem.List(context.Background(), Filter{}); len(got) != 1 {
		t.Fatalf("expected entry despite cancelled context")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := sink.Record(context.Background(), sampleEntries()[0]); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !strings.Contains(buf.String(), "operation=recommendation") {
		t.Fatalf("unexpected log output %q", buf.String())
	}
	if got, _ := sink.List(context.Background(), Filter{}); got != nil {
		t.Fatalf("log sink should not list")
	}
}
