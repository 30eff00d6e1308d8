package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

// Codes SQLSTATE utiles
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

const followsSchema = `
	CREATE TABLE IF NOT EXISTS follows (
		following_user_id TEXT NOT NULL,
		followed_user_id  TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		seq               BIGSERIAL,
		PRIMARY KEY (following_user_id, followed_user_id),
		CONSTRAINT follows_no_self CHECK (following_user_id <> followed_user_id)
	);
	ALTER TABLE follows ADD COLUMN IF NOT EXISTS seq BIGSERIAL;
	CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows (followed_user_id, created_at DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_follows_following ON follows (following_user_id, created_at DESC, seq DESC);
`

// PostgresRepo stocke les arêtes dans la table follows (une ligne = une arête).
// À created_at égal, seq départage : la dernière insertion d'abord, comme les autres stores.
type PostgresRepo struct {
	db *pgxpool.Pool
}

var _ ports.EdgeStore = (*PostgresRepo)(nil)

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: pool}
}

// EnsureSchema crée la table et les index de parcours (pas de migrations versionnées ici).
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, followsSchema); err != nil {
		return fmt.Errorf("db: ensure follows schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM follows WHERE following_user_id = $1 AND followed_user_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, q, followerID, followeeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db: exists: %w", err)
	}
	return exists, nil
}

// Insert est atomique (une seule ligne) ; la PK garantit l'unicité.
func (r *PostgresRepo) Insert(ctx context.Context, followerID, followeeID string) (*domain.Follow, error) {
	q := `
		INSERT INTO follows (following_user_id, followed_user_id)
		VALUES (@follower, @followee)
		RETURNING created_at
	`
	args := pgx.NamedArgs{
		"follower": followerID,
		"followee": followeeID,
	}

	follow := &domain.Follow{FollowerID: followerID, FolloweeID: followeeID}
	if err := r.db.QueryRow(ctx, q, args).Scan(&follow.CreatedAt); err != nil {
		return nil, r.handleError(err)
	}
	follow.CreatedAt = follow.CreatedAt.UTC()
	return follow, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, followerID, followeeID string) (bool, error) {
	q := `DELETE FROM follows WHERE following_user_id = $1 AND followed_user_id = $2`

	tag, err := r.db.Exec(ctx, q, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("db: delete follow: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) ScanByFollowee(ctx context.Context, followeeID string, p domain.Pagination) ([]string, int, error) {
	return r.scan(ctx,
		`SELECT COUNT(*) FROM follows WHERE followed_user_id = $1`,
		`SELECT following_user_id FROM follows WHERE followed_user_id = $1
		 ORDER BY created_at DESC, seq DESC LIMIT $2 OFFSET $3`,
		followeeID, p)
}

func (r *PostgresRepo) ScanByFollower(ctx context.Context, followerID string, p domain.Pagination) ([]string, int, error) {
	return r.scan(ctx,
		`SELECT COUNT(*) FROM follows WHERE following_user_id = $1`,
		`SELECT followed_user_id FROM follows WHERE following_user_id = $1
		 ORDER BY created_at DESC, seq DESC LIMIT $2 OFFSET $3`,
		followerID, p)
}

// scan envoie le COUNT et la page dans un seul aller-retour (pgx.Batch).
// Pas de transaction : les deux lectures peuvent voir des instants différents.
func (r *PostgresRepo) scan(ctx context.Context, countQ, dataQ, userID string, p domain.Pagination) ([]string, int, error) {
	batch := &pgx.Batch{}
	batch.Queue(countQ, userID)
	batch.Queue(dataQ, userID, p.Limit, p.Offset())

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	var total int
	if err := br.QueryRow().Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db: count edges: %w", err)
	}

	rows, err := br.Query()
	if err != nil {
		return nil, 0, fmt.Errorf("db: scan edges: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, 0, fmt.Errorf("db: collect edges: %w", err)
	}
	return ids, total, nil
}

func (r *PostgresRepo) CountByFollowee(ctx context.Context, followeeID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM follows WHERE followed_user_id = $1`, followeeID)
}

func (r *PostgresRepo) CountByFollower(ctx context.Context, followerID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM follows WHERE following_user_id = $1`, followerID)
}

func (r *PostgresRepo) count(ctx context.Context, q, userID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db: count: %w", err)
	}
	return n, nil
}

func (r *PostgresRepo) Mutual(ctx context.Context, a, b string) ([]string, error) {
	q := `
		SELECT f1.followed_user_id
		FROM follows f1
		INNER JOIN follows f2 ON f1.followed_user_id = f2.followed_user_id
		WHERE f1.following_user_id = $1 AND f2.following_user_id = $2
		ORDER BY f1.created_at DESC, f1.seq DESC
	`
	rows, err := r.db.Query(ctx, q, a, b)
	if err != nil {
		return nil, fmt.Errorf("db: mutual: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("db: mutual: %w", err)
	}
	return ids, nil
}

// handleError traduit les codes d'erreur PostgreSQL en erreurs du Domaine
func (r *PostgresRepo) handleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", domain.ErrConstraintViolation, pgErr.ConstraintName)
		case pgCheckViolation:
			return domain.ErrSelfFollow
		}
	}
	return fmt.Errorf("db: %w", err)
}
