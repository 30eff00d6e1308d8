package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
)

func TestMemoryEdgeStore_InsertAndExists(t *testing.T) {
	s := NewMemoryEdgeStore()
	ctx := context.Background()

	f, err := s.Insert(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", f.FollowerID)

	ok, _ := s.Exists(ctx, "alice", "bob")
	assert.True(t, ok)
	ok, _ = s.Exists(ctx, "bob", "alice")
	assert.False(t, ok)
}

func TestMemoryEdgeStore_DuplicateIsConstraintViolation(t *testing.T) {
	s := NewMemoryEdgeStore()
	ctx := context.Background()
	_, err := s.Insert(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = s.Insert(ctx, "alice", "bob")

	assert.ErrorIs(t, err, domain.ErrConstraintViolation)
	n, _ := s.CountByFollowee(ctx, "bob")
	assert.Equal(t, 1, n)
}

func TestMemoryEdgeStore_RejectsSelfEdge(t *testing.T) {
	_, err := NewMemoryEdgeStore().Insert(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, domain.ErrSelfFollow)
}

func TestMemoryEdgeStore_DeleteIsIdempotent(t *testing.T) {
	s := NewMemoryEdgeStore()
	ctx := context.Background()
	_, _ = s.Insert(ctx, "alice", "bob")

	removed, err := s.Delete(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryEdgeStore_ScanOrdersByCreatedAtDesc(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base.Add(2 * time.Hour), base, base.Add(time.Hour)}
	i := 0
	s := NewMemoryEdgeStore().WithClock(func() time.Time {
		ts := times[i]
		i++
		return ts
	})
	ctx := context.Background()

	for _, follower := range []string{"carol", "alice", "bob"} {
		_, err := s.Insert(ctx, follower, "zed")
		require.NoError(t, err)
	}

	ids, total, err := s.ScanByFollowee(ctx, "zed", domain.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"carol", "bob", "alice"}, ids)
}

func TestMemoryEdgeStore_SameTimestampLatestInsertFirst(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryEdgeStore().WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	for _, followee := range []string{"x", "y", "z"} {
		_, _ = s.Insert(ctx, "alice", followee)
	}

	ids, _, _ := s.ScanByFollower(ctx, "alice", domain.NewPagination(1, 10))
	assert.Equal(t, []string{"z", "y", "x"}, ids)
}

func TestMemoryEdgeStore_ScanWindow(t *testing.T) {
	s := NewMemoryEdgeStore()
	ctx := context.Background()
	for _, f := range []string{"a", "b", "c", "d", "e"} {
		_, _ = s.Insert(ctx, "u", f)
	}

	ids, total, _ := s.ScanByFollower(ctx, "u", domain.Pagination{Page: 2, Limit: 2})
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"c", "b"}, ids)

	ids, _, _ = s.ScanByFollower(ctx, "u", domain.Pagination{Page: 4, Limit: 2})
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
}

func TestMemoryEdgeStore_Mutual(t *testing.T) {
	s := NewMemoryEdgeStore()
	ctx := context.Background()
	for _, f := range []string{"x", "y", "z"} {
		_, _ = s.Insert(ctx, "a", f)
	}
	for _, f := range []string{"w", "z", "y"} {
		_, _ = s.Insert(ctx, "b", f)
	}

	ids, err := s.Mutual(ctx, "a", "b")
	require.NoError(t, err)
	// Ordre : récence des arêtes de a
	assert.Equal(t, []string{"z", "y"}, ids)

	ids, _ = s.Mutual(ctx, "a", "nobody")
	assert.Equal(t, []string{}, ids)
}

func TestMemoryEdgeStore_ConcurrentInsertsSingleWinner(t *testing.T) {
	s := NewMemoryEdgeStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Insert(ctx, "alice", "bob"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryUserDirectory(t *testing.T) {
	d := NewMemoryUserDirectory("alice", "bob")
	ctx := context.Background()

	ok, _ := d.Exists(ctx, "alice")
	assert.True(t, ok)
	ok, _ = d.Exists(ctx, "ghost")
	assert.False(t, ok)

	users, err := d.GetByUsernames(ctx, []string{"bob", "ghost", "alice"})
	require.NoError(t, err)
	require.Len(t, users, 2)

	d.Remove("bob")
	ok, _ = d.Exists(ctx, "bob")
	assert.False(t, ok)
}
