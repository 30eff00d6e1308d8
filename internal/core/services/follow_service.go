package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
	"github.com/jupiterclapton/socialgraph/internal/observability"
)

// Noms d'opération utilisés dans les métriques et les logs.
const (
	opFollow         = "follow"
	opUnfollow       = "unfollow"
	opRemoveFollower = "remove_follower"
	opIsFollowing    = "is_following"
	opRelation       = "relation_status"
	opStats          = "stats"
	opFollowers      = "followers"
	opFollowing      = "following"
	opMutual         = "mutual"
	opSuggestions    = "suggestions"
)

// Options règle la politique des lectures et le fan-out des suggestions.
type Options struct {
	// FailOpenReads : une lecture en panne renvoie Success=true + Degraded (comportement historique).
	// À false, elle renvoie Success=false + Degraded.
	FailOpenReads bool
	// SuggestionWorkers > 1 active le fan-out parallèle sur F1.
	SuggestionWorkers int
}

func DefaultOptions() Options {
	return Options{FailOpenReads: true, SuggestionWorkers: 1}
}

type FollowService struct {
	store     ports.EdgeStore
	users     ports.UserDirectory
	cache     ports.StatsCache     // optionnel
	publisher ports.EventPublisher // optionnel
	metrics   *observability.FollowMetrics
	opts      Options

	// statsGen avance à chaque invalidation ; une lecture commencée avant ne remplit pas le cache.
	// statsMu rend (invalidation) et (vérification + Set) mutuellement exclusifs.
	statsGen atomic.Uint64
	statsMu  sync.RWMutex
}

var _ ports.FollowService = (*FollowService)(nil)

func NewFollowService(store ports.EdgeStore, users ports.UserDirectory, opts Options) *FollowService {
	if opts.SuggestionWorkers < 1 {
		opts.SuggestionWorkers = 1
	}
	return &FollowService{
		store: store,
		users: users,
		opts:  opts,
	}
}

func (s *FollowService) WithCache(cache ports.StatsCache) *FollowService {
	s.cache = cache
	return s
}

func (s *FollowService) WithPublisher(publisher ports.EventPublisher) *FollowService {
	s.publisher = publisher
	return s
}

func (s *FollowService) WithMetrics(metrics *observability.FollowMetrics) *FollowService {
	s.metrics = metrics
	return s
}

// --- COMMANDS ---

func (s *FollowService) FollowUser(ctx context.Context, followerID, followeeID string) domain.Result[*domain.Follow] {
	followerID, followeeID = normalizeID(followerID), normalizeID(followeeID)

	if err := checkPair(followerID, followeeID); err != nil {
		return reject(s, opFollow, (*domain.Follow)(nil), err)
	}

	// 1. Les deux users doivent exister (le côté manquant est précisé)
	for _, side := range []struct {
		id   string
		side domain.Side
	}{{followerID, domain.SideFollower}, {followeeID, domain.SideFollowee}} {
		ok, err := s.users.Exists(ctx, side.id)
		if err != nil {
			return writeFailure(s, opFollow, (*domain.Follow)(nil), "failed to follow user", err)
		}
		if !ok {
			return reject(s, opFollow, (*domain.Follow)(nil), &domain.UserNotFoundError{UserID: side.id, Side: side.side})
		}
	}

	// 2. Pas de doublon
	exists, err := s.store.Exists(ctx, followerID, followeeID)
	if err != nil {
		return writeFailure(s, opFollow, (*domain.Follow)(nil), "failed to follow user", err)
	}
	if exists {
		return reject(s, opFollow, (*domain.Follow)(nil), domain.ErrAlreadyFollowing)
	}

	// 3. Insertion (une course peut encore lever ErrConstraintViolation)
	follow, err := s.store.Insert(ctx, followerID, followeeID)
	if err != nil {
		return writeFailure(s, opFollow, (*domain.Follow)(nil), "failed to follow user", err)
	}

	s.afterWrite(ctx, followerID, followeeID, func(ctx context.Context) error {
		return s.publisher.PublishFollowCreated(ctx, follow)
	})

	s.metrics.RecordOperation(opFollow, observability.OutcomeSuccess)
	slog.Info("✅ Follow created", "follower", followerID, "followee", followeeID)
	return domain.Ok(follow, "successfully followed user")
}

func (s *FollowService) UnfollowUser(ctx context.Context, followerID, followeeID string) domain.Result[bool] {
	return s.deleteEdge(ctx, opUnfollow, normalizeID(followerID), normalizeID(followeeID),
		"successfully unfollowed user", "failed to unfollow user")
}

// RemoveFollower supprime l'arête follower -> user (et non user -> follower).
func (s *FollowService) RemoveFollower(ctx context.Context, userID, followerID string) domain.Result[bool] {
	return s.deleteEdge(ctx, opRemoveFollower, normalizeID(followerID), normalizeID(userID),
		"successfully removed follower", "failed to remove follower")
}

func (s *FollowService) deleteEdge(ctx context.Context, op, followerID, followeeID, okMsg, failMsg string) domain.Result[bool] {
	if followerID == "" || followeeID == "" {
		return reject(s, op, false, domain.ErrEmptyUserID)
	}

	exists, err := s.store.Exists(ctx, followerID, followeeID)
	if err != nil {
		return writeFailure(s, op, false, failMsg, err)
	}
	if !exists {
		return reject(s, op, false, domain.ErrNotFollowing)
	}

	if _, err := s.store.Delete(ctx, followerID, followeeID); err != nil {
		return writeFailure(s, op, false, failMsg, err)
	}

	s.afterWrite(ctx, followerID, followeeID, func(ctx context.Context) error {
		return s.publisher.PublishFollowDeleted(ctx, followerID, followeeID)
	})

	s.metrics.RecordOperation(op, observability.OutcomeSuccess)
	slog.Info("✅ Follow deleted", "operation", op, "follower", followerID, "followee", followeeID)
	return domain.Ok(true, okMsg)
}

// afterWrite invalide le cache des deux users puis publie l'event.
// Les deux étapes sont best-effort : l'arête est déjà écrite.
func (s *FollowService) afterWrite(ctx context.Context, followerID, followeeID string, publish func(context.Context) error) {
	s.InvalidateStats(ctx, followerID, followeeID)

	if s.publisher == nil {
		return
	}
	if err := publish(ctx); err != nil {
		slog.Warn("⚠️ Failed to publish follow event", "error", err, "follower", followerID, "followee", followeeID)
	}
}

func (s *FollowService) InvalidateStats(ctx context.Context, userIDs ...string) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.statsGen.Add(1)
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		slog.Warn("⚠️ Failed to invalidate stats cache", "error", err, "users", userIDs)
	}
}

// --- QUERIES ---

// IsFollowing ne remonte jamais d'erreur : une panne vaut false.
func (s *FollowService) IsFollowing(ctx context.Context, followerID, followeeID string) bool {
	followerID, followeeID = normalizeID(followerID), normalizeID(followeeID)
	if followerID == "" || followeeID == "" {
		return false
	}
	ok, err := s.store.Exists(ctx, followerID, followeeID)
	if err != nil {
		s.metrics.RecordDegraded(opIsFollowing)
		slog.Error("❌ IsFollowing failed", "error", err, "follower", followerID, "followee", followeeID)
		return false
	}
	return ok
}

func (s *FollowService) RelationStatus(ctx context.Context, viewerID, targetID string) domain.Result[domain.RelationStatus] {
	viewerID, targetID = normalizeID(viewerID), normalizeID(targetID)
	var status domain.RelationStatus
	if viewerID == "" || targetID == "" {
		return reject(s, opRelation, status, domain.ErrEmptyUserID)
	}
	if viewerID == targetID {
		return domain.Ok(status, "relation status retrieved")
	}

	// Les deux sens sont indépendants
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		status.IsFollowing, err = s.store.Exists(gctx, viewerID, targetID)
		return err
	})
	g.Go(func() (err error) {
		status.IsFollowedBy, err = s.store.Exists(gctx, targetID, viewerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return degradedRead(s, opRelation, domain.RelationStatus{}, "failed to retrieve relation status", err)
	}
	return domain.Ok(status, "relation status retrieved")
}

func (s *FollowService) GetFollowStats(ctx context.Context, userID string) domain.Result[domain.FollowStats] {
	userID = normalizeID(userID)
	if userID == "" {
		return reject(s, opStats, domain.FollowStats{}, domain.ErrEmptyUserID)
	}

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, userID)
		switch {
		case err != nil:
			s.metrics.RecordCache("error")
			slog.Warn("⚠️ Stats cache read failed", "error", err, "user", userID)
		case hit:
			s.metrics.RecordCache("hit")
			return domain.Ok(*cached, "follow stats retrieved")
		default:
			s.metrics.RecordCache("miss")
		}
	}

	gen := s.statsGen.Load()

	// Les deux compteurs peuvent refléter des instants différents
	var stats domain.FollowStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.FollowingCount, err = s.store.CountByFollower(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		stats.FollowersCount, err = s.store.CountByFollowee(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return degradedRead(s, opStats, domain.FollowStats{}, "failed to retrieve follow stats", err)
	}

	s.cacheStats(ctx, userID, stats, gen)
	return domain.Ok(stats, "follow stats retrieved")
}

// cacheStats n'écrit pas si une invalidation a eu lieu pendant le comptage.
func (s *FollowService) cacheStats(ctx context.Context, userID string, stats domain.FollowStats, gen uint64) {
	if s.cache == nil {
		return
	}
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	if s.statsGen.Load() != gen {
		slog.Debug("Stats cache write skipped, invalidated during read", "user", userID)
		return
	}
	if err := s.cache.Set(ctx, userID, stats); err != nil {
		slog.Warn("⚠️ Stats cache write failed", "error", err, "user", userID)
	}
}

func (s *FollowService) GetFollowers(ctx context.Context, userID string, p domain.Pagination) domain.Result[domain.Page[string]] {
	return s.scan(ctx, opFollowers, userID, p, s.store.ScanByFollowee, "followers retrieved", "failed to retrieve followers")
}

func (s *FollowService) GetFollowing(ctx context.Context, userID string, p domain.Pagination) domain.Result[domain.Page[string]] {
	return s.scan(ctx, opFollowing, userID, p, s.store.ScanByFollower, "following retrieved", "failed to retrieve following")
}

type scanFunc func(ctx context.Context, userID string, p domain.Pagination) ([]string, int, error)

func (s *FollowService) scan(ctx context.Context, op, userID string, p domain.Pagination, fetch scanFunc, okMsg, failMsg string) domain.Result[domain.Page[string]] {
	p = domain.NewPagination(p.Page, p.Limit)
	userID = normalizeID(userID)
	if userID == "" {
		return reject(s, op, domain.EmptyPage[string](p), domain.ErrEmptyUserID)
	}

	ids, total, err := fetch(ctx, userID, p)
	if err != nil {
		return degradedRead(s, op, domain.EmptyPage[string](p), failMsg, err)
	}
	return domain.Ok(domain.NewPage(ids, total, p), okMsg)
}

// GetMutualFollows : les users suivis à la fois par a ET par b.
func (s *FollowService) GetMutualFollows(ctx context.Context, a, b string) domain.Result[[]string] {
	a, b = normalizeID(a), normalizeID(b)
	if a == "" || b == "" {
		return reject(s, opMutual, []string{}, domain.ErrEmptyUserID)
	}
	ids, err := s.store.Mutual(ctx, a, b)
	if err != nil {
		return degradedRead(s, opMutual, []string{}, "failed to retrieve mutual follows", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return domain.Ok(ids, "mutual follows retrieved")
}

// --- HELPERS ---

// normalizeID est appliqué à l'entrée de chaque opération : une arête n'a qu'une identité.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

func checkPair(followerID, followeeID string) error {
	if followerID == "" || followeeID == "" {
		return domain.ErrEmptyUserID
	}
	if followerID == followeeID {
		return domain.ErrSelfFollow
	}
	return nil
}

// reject construit le résultat d'un refus métier (jamais loggé en erreur).
func reject[T any](s *FollowService, op string, data T, err error) domain.Result[T] {
	s.metrics.RecordOperation(op, observability.OutcomeRejected)
	slog.Debug("follow request rejected", "operation", op, "reason", err)
	return domain.Fail(data, err.Error(), err)
}

// writeFailure : une écriture en panne échoue toujours, jamais de no-op silencieux.
func writeFailure[T any](s *FollowService, op string, data T, message string, err error) domain.Result[T] {
	s.metrics.RecordOperation(op, observability.OutcomeFailed)
	slog.Error("❌ Follow write failed", "operation", op, "error", err)
	return domain.Fail(data, message, storeFailure(err))
}

// degradedRead applique la politique fail-soft des lectures.
func degradedRead[T any](s *FollowService, op string, data T, message string, err error) domain.Result[T] {
	s.metrics.RecordOperation(op, observability.OutcomeFailed)
	s.metrics.RecordDegraded(op)
	slog.Error("❌ Follow read failed, serving defaults", "operation", op, "error", err)
	return domain.Result[T]{
		Success:  s.opts.FailOpenReads,
		Message:  message,
		Data:     data,
		Err:      storeFailure(err),
		Degraded: true,
	}
}

// storeFailure classe toute erreur d'infra sous ErrStoreUnavailable.
// ErrConstraintViolation est conservée telle quelle (erreur interne).
func storeFailure(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) || errors.Is(err, domain.ErrConstraintViolation) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
