package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupRecordsAndPropagates(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	rec := tracetest.NewSpanRecorder()
	shutdown := Setup("report-service", rec)

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	span.End()

	assert.NotEmpty(t, carrier.Get("traceparent"))
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "op", rec.Ended()[0].Name())

	var svc string
	for _, kv := range rec.Ended()[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			svc = kv.Value.AsString()
		}
	}
	assert.Equal(t, "report-service", svc)
	require.NoError(t, shutdown(context.Background()))
}
