package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

const (
	StreamName     = "GRAPH"
	SubjectPattern = "graph.>" // Tous les events graph.*
)

type NatsBroker struct {
	js     jetstream.JetStream
	origin string
	now    func() time.Time
}

var _ ports.EventPublisher = (*NatsBroker)(nil)

// NewNatsBroker s'assure que le Stream existe (Idempotent).
// origin identifie l'instance pour que ses propres events soient ignorés au retour.
func NewNatsBroker(ctx context.Context, nc *nats.Conn, origin string) (*NatsBroker, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1, // Mettre 3 en cluster
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsBroker{js: js, origin: origin, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (n *NatsBroker) PublishFollowCreated(ctx context.Context, follow *domain.Follow) error {
	return n.publish(ctx, domain.SubjectFollowCreated, domain.FollowEvent{
		FollowerID: follow.FollowerID,
		FolloweeID: follow.FolloweeID,
		OccurredAt: follow.CreatedAt,
	})
}

func (n *NatsBroker) PublishFollowDeleted(ctx context.Context, followerID, followeeID string) error {
	return n.publish(ctx, domain.SubjectFollowDeleted, domain.FollowEvent{
		FollowerID: followerID,
		FolloweeID: followeeID,
		OccurredAt: n.now(),
	})
}

func (n *NatsBroker) publish(ctx context.Context, subject string, event domain.FollowEvent) error {
	event.EventID = uuid.NewString()
	event.Origin = n.origin

	msg, err := newEventMsg(ctx, subject, event)
	if err != nil {
		return err
	}

	slog.Debug("📢 Publishing follow event", "subject", subject, "event_id", event.EventID)

	// JetStream confirme la persistance ; Nats-Msg-Id déduplique les retries
	if _, err := n.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// newEventMsg sérialise l'event et injecte le contexte de trace dans les headers.
func newEventMsg(ctx context.Context, subject string, event domain.FollowEvent) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(jetstream.MsgIDHeader, event.EventID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))
	return msg, nil
}
