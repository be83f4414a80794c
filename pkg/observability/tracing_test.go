package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanRecordsConnectorAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	Install(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	_, span := StartSpan(context.Background(), "memory", "get_attribute")
	EndSpan(span, nil)

	_, span = StartSpan(context.Background(), "memory", "set_attribute")
	EndSpan(span, errors.New("boom"))

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "memory.get_attribute", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "memory", attrs["connector.name"])
	assert.Equal(t, "get_attribute", attrs["connector.operation"])

	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "boom", ended[1].Status().Description)
}

func TestInitializeDisabledIsNoop(t *testing.T) {
	require.NoError(t, Initialize(TracingConfig{}))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitializeRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.ExporterType = "carrier-pigeon"
	assert.Error(t, Initialize(cfg))
}

func TestInitializeWithoutExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.ExporterType = "none"
	require.NoError(t, Initialize(cfg))
	assert.NoError(t, Shutdown(context.Background()))
}
