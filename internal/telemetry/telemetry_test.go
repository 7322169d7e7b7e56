package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"turnkeep/internal/config"
)

func TestInit_Disabled(t *testing.T) {
	var buf bytes.Buffer
	p, err := Init(context.Background(), config.TelemetryConfig{Exporter: "stdout"}, &buf)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	_, span := p.Tracer.Start(context.Background(), "turn.commit")
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled provider exported %q", buf.String())
	}
}

func TestInit_Stdout(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	p, err := Init(ctx, config.TelemetryConfig{Enabled: true, Exporter: "stdout", ServiceName: "turnkeep-test"}, &buf)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	counter, err := p.Meter.Int64Counter("turnkeep.turns.committed")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(ctx, 1)

	_, span := p.Tracer.Start(ctx, "turn.commit")
	span.End()

	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "turn.commit") {
		t.Errorf("exported spans missing turn.commit: %s", out)
	}
	if !strings.Contains(out, "turnkeep-test") {
		t.Errorf("exported spans missing service name: %s", out)
	}

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestInit_OTLPHTTP(t *testing.T) {
	// The exporter connects lazily, so construction succeeds without a collector.
	p, err := Init(context.Background(), config.TelemetryConfig{Enabled: true, Exporter: "otlphttp"}, nil)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Error("Init() returned provider without tracer or meter")
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	if _, err := Init(context.Background(), config.TelemetryConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Error("Init() expected error for unknown exporter")
	}
}
