package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

type edgeKey struct {
	follower string
	followee string
}

type memoryEdge struct {
	follow *domain.Follow
	seq    uint64 // départage les created_at identiques (dernier inséré = plus récent)
}

// MemoryEdgeStore est un EdgeStore en RAM (EDGE_STORE=memory, tests).
type MemoryEdgeStore struct {
	mu    sync.RWMutex
	edges map[edgeKey]memoryEdge
	seq   uint64
	now   func() time.Time
}

var _ ports.EdgeStore = (*MemoryEdgeStore)(nil)

func NewMemoryEdgeStore() *MemoryEdgeStore {
	return &MemoryEdgeStore{
		edges: make(map[edgeKey]memoryEdge),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock remplace l'horloge (tests déterministes).
func (s *MemoryEdgeStore) WithClock(now func() time.Time) *MemoryEdgeStore {
	s.now = now
	return s
}

func (s *MemoryEdgeStore) Exists(_ context.Context, followerID, followeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.edges[edgeKey{followerID, followeeID}]
	return ok, nil
}

func (s *MemoryEdgeStore) Insert(_ context.Context, followerID, followeeID string) (*domain.Follow, error) {
	follow, err := domain.NewFollow(followerID, followeeID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{follow.FollowerID, follow.FolloweeID}
	if _, ok := s.edges[key]; ok {
		return nil, domain.ErrConstraintViolation
	}
	s.seq++
	follow.CreatedAt = s.now()
	s.edges[key] = memoryEdge{follow: follow, seq: s.seq}

	copied := *follow
	return &copied, nil
}

func (s *MemoryEdgeStore) Delete(_ context.Context, followerID, followeeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{followerID, followeeID}
	if _, ok := s.edges[key]; !ok {
		return false, nil
	}
	delete(s.edges, key)
	return true, nil
}

func (s *MemoryEdgeStore) ScanByFollowee(_ context.Context, followeeID string, p domain.Pagination) ([]string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := s.collect(func(e *domain.Follow) bool { return e.FolloweeID == followeeID })
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.follow.FollowerID
	}
	return window(ids, p), len(ids), nil
}

func (s *MemoryEdgeStore) ScanByFollower(_ context.Context, followerID string, p domain.Pagination) ([]string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := s.collect(func(e *domain.Follow) bool { return e.FollowerID == followerID })
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.follow.FolloweeID
	}
	return window(ids, p), len(ids), nil
}

func (s *MemoryEdgeStore) CountByFollowee(_ context.Context, followeeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collect(func(e *domain.Follow) bool { return e.FolloweeID == followeeID })), nil
}

func (s *MemoryEdgeStore) CountByFollower(_ context.Context, followerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collect(func(e *domain.Follow) bool { return e.FollowerID == followerID })), nil
}

func (s *MemoryEdgeStore) Mutual(_ context.Context, a, b string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mutual := []string{}
	for _, e := range s.collect(func(e *domain.Follow) bool { return e.FollowerID == a }) {
		if _, ok := s.edges[edgeKey{b, e.follow.FolloweeID}]; ok {
			mutual = append(mutual, e.follow.FolloweeID)
		}
	}
	return mutual, nil
}

// collect filtre puis trie par created_at DESC. Appelant doit tenir le lock.
func (s *MemoryEdgeStore) collect(match func(*domain.Follow) bool) []memoryEdge {
	var out []memoryEdge
	for _, e := range s.edges {
		if match(e.follow) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].follow.CreatedAt, out[j].follow.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

func window(ids []string, p domain.Pagination) []string {
	start := p.Offset()
	if start >= len(ids) || p.Limit <= 0 {
		return []string{}
	}
	end := min(start+p.Limit, len(ids))
	return append([]string(nil), ids[start:end]...)
}

// MemoryUserDirectory est le UserDirectory en RAM.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

var _ ports.UserDirectory = (*MemoryUserDirectory)(nil)

func NewMemoryUserDirectory(usernames ...string) *MemoryUserDirectory {
	d := &MemoryUserDirectory{users: make(map[string]*domain.User)}
	for _, name := range usernames {
		d.Add(&domain.User{Username: name, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()})
	}
	return d
}

func (d *MemoryUserDirectory) Add(user *domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.Username] = user
}

func (d *MemoryUserDirectory) Remove(username string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, username)
}

func (d *MemoryUserDirectory) Exists(_ context.Context, username string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[username]
	return ok, nil
}

func (d *MemoryUserDirectory) GetByUsernames(_ context.Context, usernames []string) ([]*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]*domain.User, 0, len(usernames))
	for _, name := range usernames {
		if u, ok := d.users[name]; ok {
			copied := *u
			users = append(users, &copied)
		}
	}
	return users, nil
}
