package domain

import (
	"errors"
	"fmt"
)

// --- ERREURS DU DOMAINE ---
var (
	ErrEmptyUserID      = errors.New("user id cannot be empty")
	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrUserNotFound     = errors.New("user not found")
	ErrAlreadyFollowing = errors.New("already following")
	ErrNotFollowing     = errors.New("not following")

	// Erreurs d'infrastructure (jamais renvoyées telles quelles au client)
	ErrConstraintViolation = errors.New("follow constraint violation")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// Side indique quel côté de l'arête est concerné.
type Side string

const (
	SideFollower Side = "follower"
	SideFollowee Side = "followee"
)

// UserNotFoundError précise quel utilisateur manque.
// errors.Is(err, ErrUserNotFound) fonctionne grâce à Unwrap.
type UserNotFoundError struct {
	UserID string
	Side   Side
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Side, e.UserID)
}

func (e *UserNotFoundError) Unwrap() error {
	return ErrUserNotFound
}

// IsBusinessError distingue les refus métier des pannes d'infra.
func IsBusinessError(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyUserID),
		errors.Is(err, ErrSelfFollow),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrAlreadyFollowing),
		errors.Is(err, ErrNotFollowing):
		return true
	default:
		return false
	}
}
