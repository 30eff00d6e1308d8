package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

const invalidateTimeout = 5 * time.Second

// EventHandler réagit aux écritures d'arêtes faites par les autres instances.
type EventHandler struct {
	service ports.FollowService
	origin  string // events émis par cette instance : déjà invalidés localement
}

func NewEventHandler(service ports.FollowService, origin string) *EventHandler {
	return &EventHandler{service: service, origin: origin}
}

// Subscribe branche le handler sur graph.follow.* (core NATS, chaque instance reçoit tout).
func (h *EventHandler) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe(domain.SubjectFollowAll, h.HandleFollowEvent)
}

func (h *EventHandler) HandleFollowEvent(msg *nats.Msg) {
	// 1. Extraction du contexte de trace posé par le publisher
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))

	tracer := otel.Tracer("socialgraph")
	ctx, span := tracer.Start(ctx, "process_follow_event",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination", msg.Subject)),
	)
	defer span.End()

	var event domain.FollowEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		slog.Error("❌ Invalid follow event format", "error", err, "subject", msg.Subject)
		return
	}

	if event.Origin != "" && event.Origin == h.origin {
		return
	}
	if event.FollowerID == "" || event.FolloweeID == "" {
		slog.Warn("⚠️ Follow event without user ids", "event_id", event.EventID)
		return
	}

	slog.Debug("📨 Follow event received", "subject", msg.Subject, "event_id", event.EventID)

	// 2. Les compteurs des deux côtés ont changé
	ctx, cancel := context.WithTimeout(ctx, invalidateTimeout)
	defer cancel()
	h.service.InvalidateStats(ctx, event.FollowerID, event.FolloweeID)
}
