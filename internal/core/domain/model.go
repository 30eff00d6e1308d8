package domain

import (
	"strings"
	"time"
)

// Follow représente un lien dirigé dans le graphe (Follower -> FOLLOWS -> Followee).
// Une arête est immuable : on la crée ou on la supprime, jamais d'update.
type Follow struct {
	FollowerID string // Celui qui suit
	FolloweeID string // Celui qui est suivi
	CreatedAt  time.Time
}

// NewFollow valide les invariants d'une arête avant insertion.
func NewFollow(followerID, followeeID string) (*Follow, error) {
	followerID = strings.TrimSpace(followerID)
	followeeID = strings.TrimSpace(followeeID)
	if followerID == "" || followeeID == "" {
		return nil, ErrEmptyUserID
	}
	if followerID == followeeID {
		return nil, ErrSelfFollow
	}
	return &Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// FollowStats regroupe les deux compteurs d'un utilisateur.
// Les deux valeurs peuvent provenir d'instants légèrement différents.
type FollowStats struct {
	FollowingCount int
	FollowersCount int
	// Toujours 0 pour un utilisateur seul : le "mutual" se calcule entre deux users.
	MutualFollowsCount int
}

// RelationStatus est utilisé pour l'UI (isFollowedByMe / isFollowingMe)
type RelationStatus struct {
	IsFollowing  bool // Viewer suit Target
	IsFollowedBy bool // Target suit Viewer
}

// IsMutual vaut true quand les deux sens existent.
func (r RelationStatus) IsMutual() bool {
	return r.IsFollowing && r.IsFollowedBy
}
