package repository

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
)

// Tests d'intégration : nécessitent un Neo4j (NEO4J_TEST_URI=neo4j://localhost:7687).
func newTestNeo4j(t *testing.T) *Neo4jRepo {
	t.Helper()
	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set")
	}

	ctx := context.Background()
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(os.Getenv("NEO4J_TEST_USER"), os.Getenv("NEO4J_TEST_PASSWORD"), ""))
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close(ctx) })
	require.NoError(t, driver.VerifyConnectivity(ctx))

	_, err = neo4j.ExecuteQuery(ctx, driver, `MATCH (n:User) DETACH DELETE n`, nil, neo4j.EagerResultTransformer)
	require.NoError(t, err)

	repo := NewNeo4jRepo(driver)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestNeo4jRepo_EdgeLifecycle(t *testing.T) {
	repo := newTestNeo4j(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = repo.Insert(ctx, "alice", "bob")
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)

	ok, err := repo.Exists(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := repo.Delete(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestNeo4jRepo_ConcurrentInsertsSingleEdge(t *testing.T) {
	repo := newTestNeo4j(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Insert(ctx, "alice", "bob")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrConstraintViolation)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	n, err := repo.CountByFollower(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNeo4jRepo_ScanAndMutual(t *testing.T) {
	repo := newTestNeo4j(t)
	ctx := context.Background()

	for _, f := range []string{"x", "y", "z"} {
		_, err := repo.Insert(ctx, "a", f)
		require.NoError(t, err)
	}
	for _, f := range []string{"y", "z", "w"} {
		_, err := repo.Insert(ctx, "b", f)
		require.NoError(t, err)
	}

	ids, total, err := repo.ScanByFollower(ctx, "a", domain.NewPagination(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, ids, 2)

	n, err := repo.CountByFollowee(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mutual, err := repo.Mutual(ctx, "a", "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"y", "z"}, mutual)
}

func TestNeo4jRepo_SameTimestampLatestInsertFirst(t *testing.T) {
	repo := newTestNeo4j(t)
	ctx := context.Background()

	for _, f := range []string{"x", "y", "z"} {
		_, err := repo.Insert(ctx, "a", f)
		require.NoError(t, err)
		_, err = repo.Insert(ctx, "b", f)
		require.NoError(t, err)
	}
	_, err := neo4j.ExecuteQuery(ctx, repo.driver,
		`MATCH ()-[r:FOLLOWS]->() SET r.created_at = datetime('2024-05-01T12:00:00Z')`,
		nil, neo4j.EagerResultTransformer)
	require.NoError(t, err)

	ids, _, err := repo.ScanByFollower(ctx, "a", domain.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, ids)

	followers, _, err := repo.ScanByFollowee(ctx, "x", domain.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, followers)

	mutual, err := repo.Mutual(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, mutual)
}
