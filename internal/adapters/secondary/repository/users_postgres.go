package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/socialgraph/internal/core/domain"
	"github.com/jupiterclapton/socialgraph/internal/core/ports"
)

// sqlUser est le DTO interne de la table users (colonnes NULLables).
type sqlUser struct {
	Username       string    `db:"username"`
	Email          string    `db:"email"`
	FirstName      *string   `db:"first_name"`
	LastName       *string   `db:"last_name"`
	Bio            *string   `db:"bio"`
	ProfilePicture *string   `db:"profile_picture"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// PostgresUserDirectory lit la table users possédée par le service User.
type PostgresUserDirectory struct {
	db *pgxpool.Pool
}

var _ ports.UserDirectory = (*PostgresUserDirectory)(nil)

func NewPostgresUserDirectory(pool *pgxpool.Pool) *PostgresUserDirectory {
	return &PostgresUserDirectory{db: pool}
}

func (d *PostgresUserDirectory) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := d.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db: user exists: %w", err)
	}
	return exists, nil
}

func (d *PostgresUserDirectory) GetByUsernames(ctx context.Context, usernames []string) ([]*domain.User, error) {
	if len(usernames) == 0 {
		return []*domain.User{}, nil
	}

	q := `
		SELECT username, email, first_name, last_name, bio, profile_picture, created_at, updated_at
		FROM users WHERE username = ANY($1)
	`
	rows, err := d.db.Query(ctx, q, usernames)
	if err != nil {
		return nil, fmt.Errorf("db: get users: %w", err)
	}
	dtos, err := pgx.CollectRows(rows, pgx.RowToStructByName[sqlUser])
	if err != nil {
		return nil, fmt.Errorf("db: collect users: %w", err)
	}

	users := make([]*domain.User, 0, len(dtos))
	for i := range dtos {
		users = append(users, dtos[i].toDomain())
	}
	return users, nil
}

func (u *sqlUser) toDomain() *domain.User {
	return &domain.User{
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      deref(u.FirstName),
		LastName:       deref(u.LastName),
		Bio:            deref(u.Bio),
		ProfilePicture: deref(u.ProfilePicture),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
