package ports

import (
	"context"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
)

// FollowService est le port Driving (API) consommé par les adapters HTTP et events.
type FollowService interface {
	// --- COMMANDS (Write) ---
	FollowUser(ctx context.Context, followerID, followeeID string) domain.Result[*domain.Follow]
	UnfollowUser(ctx context.Context, followerID, followeeID string) domain.Result[bool]
	// RemoveFollower : le followee retire quelqu'un qui le suit (arête follower -> user).
	RemoveFollower(ctx context.Context, userID, followerID string) domain.Result[bool]

	// --- QUERIES (Read) ---
	IsFollowing(ctx context.Context, followerID, followeeID string) bool
	RelationStatus(ctx context.Context, viewerID, targetID string) domain.Result[domain.RelationStatus]
	GetFollowStats(ctx context.Context, userID string) domain.Result[domain.FollowStats]
	GetFollowers(ctx context.Context, userID string, p domain.Pagination) domain.Result[domain.Page[string]]
	GetFollowing(ctx context.Context, userID string, p domain.Pagination) domain.Result[domain.Page[string]]
	GetMutualFollows(ctx context.Context, a, b string) domain.Result[[]string]
	GetFollowSuggestions(ctx context.Context, userID string, limit int) domain.Result[[]string]

	// InvalidateStats est appelé quand un autre replica annonce une arête créée/supprimée.
	InvalidateStats(ctx context.Context, userIDs ...string)
}
