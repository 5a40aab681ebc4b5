package tracing

import (
	"context"
	"errors"
	"testing"

	"portfolio-chat/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "abc...xyz", TruncateString("abcdefghijklmnopqrstuvwxyz", 9))
}

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "S*", MaskPII("St"))
	assert.Equal(t, "S**n", MaskPII("Stan"))
	assert.Equal(t, "st***************om", MaskPII("stephen@example.com"))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "St*********ng", SafeAttributeValue("resume.owner_name", "Stephen Chung", 100))
	assert.Equal(t, "hello", SafeAttributeValue("chat.query", "hello", 100))
}

func TestRecordErrorSetsStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordError(span, errors.New("boom"), ErrorTypeClassification)
	RecordError(span, nil, ErrorTypeInternal)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "classification", attrs["error.type"])
	assert.Equal(t, "boom", attrs["error.message"])
}

func TestInitProviderWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), config.TracingConfig{}, "svc", "0.0.0")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
