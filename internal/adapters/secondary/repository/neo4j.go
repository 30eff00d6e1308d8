package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

type Neo4jRepo struct {
	driver neo4j.DriverWithContext
}

var _ ports.EdgeStore = (*Neo4jRepo)(nil)

func NewNeo4jRepo(driver neo4j.DriverWithContext) *Neo4jRepo {
	return &Neo4jRepo{driver: driver}
}

// EnsureSchema crée les index pour que les lookups par ID soient O(1)
func (r *Neo4jRepo) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Contrainte d'unicité sur User.id (crée aussi un index)
		query := `CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`
		if _, err := tx.Run(ctx, query, nil); err != nil {
			return nil, err
		}
		// Un seul compteur de séquence, même sous inserts concurrents
		query = `CREATE CONSTRAINT sequence_name_unique IF NOT EXISTS FOR (c:Sequence) REQUIRE c.name IS UNIQUE`
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	return err
}

func (r *Neo4jRepo) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return edgeExists(ctx, tx, followerID, followeeID)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func edgeExists(ctx context.Context, tx neo4j.ManagedTransaction, followerID, followeeID string) (bool, error) {
	query := `
		MATCH (:User {id: $followerId})-[r:FOLLOWS]->(:User {id: $followeeId})
		RETURN count(r) > 0 AS found
	`
	res, err := tx.Run(ctx, query, map[string]any{"followerId": followerID, "followeeId": followeeID})
	if err != nil {
		return false, err
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return false, err
	}
	found, _ := rec.Get("found")
	return found.(bool), nil
}

// Insert crée l'arête avec MERGE : Neo4j verrouille les deux noeuds avant de créer
// la relation, donc deux inserts concurrents ne produisent qu'une arête.
// Si rien n'a été créé, l'arête existait : ErrConstraintViolation.
func (r *Neo4jRepo) Insert(ctx context.Context, followerID, followeeID string) (*domain.Follow, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Les noeuds sont créés à la volée (le user directory reste la source de vérité)
		query := `
			MERGE (a:User {id: $followerId})
			MERGE (b:User {id: $followeeId})
			MERGE (a)-[r:FOLLOWS]->(b)
			ON CREATE SET r.created_at = datetime()
			RETURN r.created_at AS createdAt
		`
		res, err := tx.Run(ctx, query, map[string]any{"followerId": followerID, "followeeId": followeeID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		if summary.Counters().RelationshipsCreated() == 0 {
			return nil, domain.ErrConstraintViolation
		}
		if err := stampSequence(ctx, tx, followerID, followeeID); err != nil {
			return nil, err
		}
		createdAt, _ := rec.Get("createdAt")
		return toTime(createdAt), nil
	})
	if err != nil {
		return nil, err
	}

	return &domain.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  result.(time.Time),
	}, nil
}

// stampSequence numérote l'arête via un compteur unique : à created_at égal,
// la dernière insertion passe en premier, comme dans les autres stores.
func stampSequence(ctx context.Context, tx neo4j.ManagedTransaction, followerID, followeeID string) error {
	query := `
		MERGE (c:Sequence {name: 'follows'})
		ON CREATE SET c.value = 0
		SET c.value = c.value + 1
		WITH c
		MATCH (:User {id: $followerId})-[r:FOLLOWS]->(:User {id: $followeeId})
		SET r.seq = c.value
	`
	_, err := tx.Run(ctx, query, map[string]any{"followerId": followerID, "followeeId": followeeID})
	return err
}

func (r *Neo4jRepo) Delete(ctx context.Context, followerID, followeeID string) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (:User {id: $followerId})-[r:FOLLOWS]->(:User {id: $followeeId})
			DELETE r
		`
		res, err := tx.Run(ctx, query, map[string]any{"followerId": followerID, "followeeId": followeeID})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().RelationshipsDeleted() > 0, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Les deux directions ne diffèrent que par le sens de la flèche.
const (
	followersPattern = `(:User {id: $userId})<-[r:FOLLOWS]-(other:User)`
	followingPattern = `(:User {id: $userId})-[r:FOLLOWS]->(other:User)`
)

func (r *Neo4jRepo) ScanByFollowee(ctx context.Context, followeeID string, p domain.Pagination) ([]string, int, error) {
	return r.scan(ctx, followersPattern, followeeID, p)
}

func (r *Neo4jRepo) ScanByFollower(ctx context.Context, followerID string, p domain.Pagination) ([]string, int, error) {
	return r.scan(ctx, followingPattern, followerID, p)
}

type scanResult struct {
	ids   []string
	total int
}

func (r *Neo4jRepo) scan(ctx context.Context, pattern, userID string, p domain.Pagination) ([]string, int, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		total, err := countPattern(ctx, tx, pattern, userID)
		if err != nil {
			return nil, err
		}

		query := fmt.Sprintf(`
			MATCH %s
			RETURN other.id AS id
			ORDER BY r.created_at DESC, r.seq DESC
			SKIP $skip LIMIT $limit
		`, pattern)
		res, err := tx.Run(ctx, query, map[string]any{
			"userId": userID,
			"skip":   int64(p.Offset()),
			"limit":  int64(p.Limit),
		})
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, p.Limit)
		for res.Next(ctx) {
			id, _ := res.Record().Get("id")
			ids = append(ids, id.(string))
		}
		return scanResult{ids: ids, total: total}, res.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	out := result.(scanResult)
	return out.ids, out.total, nil
}

func (r *Neo4jRepo) CountByFollowee(ctx context.Context, followeeID string) (int, error) {
	return r.count(ctx, followersPattern, followeeID)
}

func (r *Neo4jRepo) CountByFollower(ctx context.Context, followerID string) (int, error) {
	return r.count(ctx, followingPattern, followerID)
}

func (r *Neo4jRepo) count(ctx context.Context, pattern, userID string) (int, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return countPattern(ctx, tx, pattern, userID)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func countPattern(ctx context.Context, tx neo4j.ManagedTransaction, pattern, userID string) (int, error) {
	res, err := tx.Run(ctx, fmt.Sprintf(`MATCH %s RETURN count(r) AS total`, pattern), map[string]any{"userId": userID})
	if err != nil {
		return 0, err
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	total, _ := rec.Get("total")
	return int(total.(int64)), nil
}

// Mutual : les users suivis à la fois par a et par b, triés par récence de l'arête de a.
func (r *Neo4jRepo) Mutual(ctx context.Context, a, b string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (:User {id: $a})-[ra:FOLLOWS]->(m:User)<-[:FOLLOWS]-(:User {id: $b})
			RETURN m.id AS id
			ORDER BY ra.created_at DESC, ra.seq DESC
		`
		res, err := tx.Run(ctx, query, map[string]any{"a": a, "b": b})
		if err != nil {
			return nil, err
		}
		ids := []string{}
		for res.Next(ctx) {
			id, _ := res.Record().Get("id")
			ids = append(ids, id.(string))
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// toTime : le driver renvoie les DateTime Neo4j en time.Time.
func toTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return time.Now().UTC()
}
