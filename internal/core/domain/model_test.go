package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFollow(t *testing.T) {
	f, err := NewFollow(" alice ", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", f.FollowerID)
	assert.Equal(t, "bob", f.FolloweeID)
	assert.False(t, f.CreatedAt.IsZero())

	_, err = NewFollow("alice", "alice")
	assert.ErrorIs(t, err, ErrSelfFollow)

	_, err = NewFollow("", "bob")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestUserNotFoundError(t *testing.T) {
	err := fmt.Errorf("lookup: %w", &UserNotFoundError{UserID: "ghost", Side: SideFollowee})

	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, `lookup: followee "ghost" not found`, err.Error())
	assert.True(t, IsBusinessError(err))
}

func TestIsBusinessError(t *testing.T) {
	assert.True(t, IsBusinessError(ErrSelfFollow))
	assert.True(t, IsBusinessError(ErrNotFollowing))
	assert.False(t, IsBusinessError(ErrConstraintViolation))
	assert.False(t, IsBusinessError(fmt.Errorf("%w: %w", ErrStoreUnavailable, errors.New("eof"))))
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{Username: "ada", FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{Username: "ada", FirstName: "Ada"}).FullName())
	assert.Equal(t, "ada", (&User{Username: "ada"}).FullName())
}

func TestRelationStatus_IsMutual(t *testing.T) {
	assert.True(t, RelationStatus{IsFollowing: true, IsFollowedBy: true}.IsMutual())
	assert.False(t, RelationStatus{IsFollowing: true}.IsMutual())
}
