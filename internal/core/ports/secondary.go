package ports

import (
	"context"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
)

// EdgeStore est le port Driven vers la base (Postgres, Neo4j ou mémoire).
// Les listes sont toujours triées par arête la plus récente d'abord.
type EdgeStore interface {
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)

	// Insert renvoie domain.ErrConstraintViolation si l'arête existe déjà.
	Insert(ctx context.Context, followerID, followeeID string) (*domain.Follow, error)

	// Delete renvoie false si aucune ligne n'a été supprimée (no-op idempotent).
	Delete(ctx context.Context, followerID, followeeID string) (bool, error)

	// ScanByFollowee liste les followers de followeeID.
	ScanByFollowee(ctx context.Context, followeeID string, p domain.Pagination) ([]string, int, error)
	// ScanByFollower liste les followees de followerID.
	ScanByFollower(ctx context.Context, followerID string, p domain.Pagination) ([]string, int, error)

	CountByFollowee(ctx context.Context, followeeID string) (int, error)
	CountByFollower(ctx context.Context, followerID string) (int, error)

	// Mutual renvoie les users suivis à la fois par a et par b, triés par récence de l'arête de a.
	Mutual(ctx context.Context, a, b string) ([]string, error)
}

// UserDirectory est le collaborateur "User" : existence + hydratation.
type UserDirectory interface {
	Exists(ctx context.Context, username string) (bool, error)
	// GetByUsernames ignore les usernames inconnus et ne garantit pas l'ordre.
	GetByUsernames(ctx context.Context, usernames []string) ([]*domain.User, error)
}

// StatsCache évite de recompter les arêtes à chaque affichage de profil (Redis).
type StatsCache interface {
	Get(ctx context.Context, userID string) (*domain.FollowStats, bool, error)
	Set(ctx context.Context, userID string, stats domain.FollowStats) error
	Invalidate(ctx context.Context, userIDs ...string) error
}

// EventPublisher notifie les autres replicas / services (NATS).
type EventPublisher interface {
	PublishFollowCreated(ctx context.Context, follow *domain.Follow) error
	PublishFollowDeleted(ctx context.Context, followerID, followeeID string) error
}
