package otelutil

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/zsiec/framepace/internal/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{ServiceName: "test"}, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), config.TracingConfig{Stdout: true, ServiceName: "framepace-test"}, &buf)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := otel.Tracer("otelutil-test").Start(context.Background(), "unit-of-work")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "unit-of-work") {
		t.Errorf("exported spans lack the span name:\n%s", out)
	}
	if !strings.Contains(out, "framepace-test") {
		t.Errorf("exported spans lack the service name:\n%s", out)
	}
}
