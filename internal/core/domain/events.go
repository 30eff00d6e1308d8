package domain

import "time"

// Sujets NATS des événements de follow (stream GRAPH).
const (
	SubjectFollowCreated = "graph.follow.created"
	SubjectFollowDeleted = "graph.follow.deleted"
	SubjectFollowAll     = "graph.follow.*"
)

// FollowEvent est le payload JSON publié après chaque écriture d'arête.
type FollowEvent struct {
	EventID    string    `json:"event_id"`
	FollowerID string    `json:"follower_id"`
	FolloweeID string    `json:"followee_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Origin     string    `json:"origin,omitempty"` // instance émettrice
}
