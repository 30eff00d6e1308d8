package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

// recordingService n'implémente que InvalidateStats ; le reste panique si appelé.
type recordingService struct {
	ports.FollowService
	invalidated [][]string
}

func (r *recordingService) InvalidateStats(_ context.Context, userIDs ...string) {
	r.invalidated = append(r.invalidated, userIDs)
}

func newMsg(t *testing.T, event domain.FollowEvent) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &nats.Msg{Subject: domain.SubjectFollowCreated, Data: data, Header: nats.Header{}}
}

func TestHandleFollowEvent_InvalidatesBothUsers(t *testing.T) {
	svc := &recordingService{}
	h := NewEventHandler(svc, "graph-1")

	h.HandleFollowEvent(newMsg(t, domain.FollowEvent{EventID: "e1", FollowerID: "alice", FolloweeID: "bob", Origin: "graph-2"}))

	assert.Equal(t, [][]string{{"alice", "bob"}}, svc.invalidated)
}

func TestHandleFollowEvent_IgnoresOwnEvents(t *testing.T) {
	svc := &recordingService{}
	h := NewEventHandler(svc, "graph-1")

	h.HandleFollowEvent(newMsg(t, domain.FollowEvent{EventID: "e1", FollowerID: "alice", FolloweeID: "bob", Origin: "graph-1"}))

	assert.Empty(t, svc.invalidated)
}

func TestHandleFollowEvent_InvalidPayload(t *testing.T) {
	svc := &recordingService{}
	h := NewEventHandler(svc, "graph-1")

	assert.NotPanics(t, func() {
		h.HandleFollowEvent(&nats.Msg{Subject: domain.SubjectFollowDeleted, Data: []byte("{not json"), Header: nats.Header{}})
		h.HandleFollowEvent(newMsg(t, domain.FollowEvent{EventID: "e2", Origin: "graph-2"}))
	})
	assert.Empty(t, svc.invalidated)
}
