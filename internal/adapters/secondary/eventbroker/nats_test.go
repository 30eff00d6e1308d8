package eventbroker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
)

func TestNewEventMsg(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	event := domain.FollowEvent{
		EventID:    "evt-1",
		FollowerID: "alice",
		FolloweeID: "bob",
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Origin:     "graph-1",
	}

	msg, err := newEventMsg(ctx, domain.SubjectFollowCreated, event)
	require.NoError(t, err)

	assert.Equal(t, domain.SubjectFollowCreated, msg.Subject)
	assert.Equal(t, "evt-1", msg.Header.Get(jetstream.MsgIDHeader))

	// Les clés sont canoniques (http.Header) : on relit via le carrier, comme le consumer
	carrier := propagation.HeaderCarrier(msg.Header)
	assert.Contains(t, carrier.Get("traceparent"), traceID.String())

	extracted := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), carrier))
	assert.True(t, extracted.IsRemote())
	assert.Equal(t, traceID, extracted.TraceID())
	assert.Equal(t, spanID, extracted.SpanID())

	var decoded domain.FollowEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, event, decoded)
}
