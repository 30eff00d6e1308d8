package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/socialgraph/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/observability"
)

func TestGetFollowSuggestions_TwoHop(t *testing.T) {
	svc, _ := newTestService(t, DefaultOptions())
	suggestionGraph(t, svc)

	res := svc.GetFollowSuggestions(context.Background(), "u", 10)

	require.True(t, res.Success)
	assert.False(t, res.Degraded)
	// s est atteignable via p et q mais n'apparaît qu'une fois
	assert.Equal(t, []string{"r", "s", "t"}, res.Data)
}

func TestGetFollowSuggestions_LimitIsPrefix(t *testing.T) {
	svc, _ := newTestService(t, DefaultOptions())
	suggestionGraph(t, svc)
	ctx := context.Background()

	full := svc.GetFollowSuggestions(ctx, "u", 10).Data

	for limit := 1; limit <= 3; limit++ {
		res := svc.GetFollowSuggestions(ctx, "u", limit)
		require.Len(t, res.Data, limit)
		assert.Equal(t, full[:limit], res.Data)
	}
	assert.Equal(t, []string{"r", "s"}, svc.GetFollowSuggestions(ctx, "u", 2).Data)
}

func TestGetFollowSuggestions_StopsEarly(t *testing.T) {
	svc, store := newTestService(t, DefaultOptions())
	suggestionGraph(t, svc)
	store.scanCalls = 0

	res := svc.GetFollowSuggestions(context.Background(), "u", 2)

	assert.Equal(t, []string{"r", "s"}, res.Data)
	// F1 + p seulement : q n'est jamais lu
	assert.Equal(t, 2, store.scanCalls)
}

func TestGetFollowSuggestions_NonPositiveLimit(t *testing.T) {
	svc, store := newTestService(t, DefaultOptions())
	suggestionGraph(t, svc)
	store.scanCalls = 0

	for _, limit := range []int{0, -3} {
		res := svc.GetFollowSuggestions(context.Background(), "u", limit)
		assert.True(t, res.Success)
		assert.Empty(t, res.Data)
	}
	assert.Zero(t, store.scanCalls)
}

func TestGetFollowSuggestions_NoFollowees(t *testing.T) {
	svc, _ := newTestService(t, DefaultOptions())

	res := svc.GetFollowSuggestions(context.Background(), "a", 10)

	assert.True(t, res.Success)
	assert.Equal(t, []string{}, res.Data)
}

func TestGetFollowSuggestions_PartialOnMidTraversalFailure(t *testing.T) {
	svc, store := newTestService(t, DefaultOptions())
	suggestionGraph(t, svc)
	store.failScanFor["q"] = true

	res := svc.GetFollowSuggestions(context.Background(), "u", 10)

	assert.True(t, res.Success)
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Err, domain.ErrStoreUnavailable)
	assert.Equal(t, []string{"r", "s"}, res.Data)
}

func TestGetFollowSuggestions_FailClosedKeepsPartialData(t *testing.T) {
	svc, store := newTestService(t, Options{FailOpenReads: false})
	suggestionGraph(t, svc)
	store.failScanFor["q"] = true

	res := svc.GetFollowSuggestions(context.Background(), "u", 10)

	assert.False(t, res.Success)
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"r", "s"}, res.Data)
}

func TestGetFollowSuggestions_FrontierFailure(t *testing.T) {
	svc, store := newTestService(t, DefaultOptions())
	suggestionGraph(t, svc)
	store.failScanFor["u"] = true

	res := svc.GetFollowSuggestions(context.Background(), "u", 10)

	assert.True(t, res.Degraded)
	assert.Empty(t, res.Data)
}

// Graphe plus large : le fan-out parallèle doit donner exactement le même ordre.
func TestGetFollowSuggestions_ParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	users := []string{"root"}
	for i := 0; i < 30; i++ {
		users = append(users, fmt.Sprintf("f%02d", i), fmt.Sprintf("c%02d", i))
	}

	build := func(workers int) *FollowService {
		svc := NewFollowService(repository.NewMemoryEdgeStore(), repository.NewMemoryUserDirectory(users...),
			Options{FailOpenReads: true, SuggestionWorkers: workers})
		for i := 0; i < 30; i++ {
			f := fmt.Sprintf("f%02d", i)
			require.True(t, svc.FollowUser(ctx, "root", f).Success)
			// Chaque f suit trois candidats qui se chevauchent avec ses voisins
			for j := 0; j < 3; j++ {
				c := fmt.Sprintf("c%02d", (i+j)%30)
				require.True(t, svc.FollowUser(ctx, f, c).Success)
			}
		}
		return svc
	}

	sequential := build(1)
	parallel := build(4)

	for _, limit := range []int{1, 5, 17, 30, 100} {
		want := sequential.GetFollowSuggestions(ctx, "root", limit)
		got := parallel.GetFollowSuggestions(ctx, "root", limit)
		require.True(t, got.Success)
		assert.Equal(t, want.Data, got.Data, "limit=%d", limit)
	}
	assert.Len(t, sequential.GetFollowSuggestions(ctx, "root", 100).Data, 30)
}

func TestGetFollowSuggestions_ParallelPartialStopsAtFailedMember(t *testing.T) {
	store := newFlakyStore()
	svc := NewFollowService(store, repository.NewMemoryUserDirectory(allUsers...),
		Options{FailOpenReads: true, SuggestionWorkers: 3})
	suggestionGraph(t, svc)
	store.failScanFor["p"] = true

	res := svc.GetFollowSuggestions(context.Background(), "u", 10)

	// p est le premier membre de F1 : rien n'est collecté même si q a répondu
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Data)
}

func TestGetFollowSuggestions_ObservesStoreReads(t *testing.T) {
	svc, _ := newTestService(t, DefaultOptions())
	reg := prometheus.NewRegistry()
	svc.WithMetrics(observability.NewFollowMetrics(reg))
	suggestionGraph(t, svc)

	svc.GetFollowSuggestions(context.Background(), "u", 10)

	count, err := testutil.GatherAndCount(reg, "socialgraph_follow_suggestion_store_reads")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
