package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "appregistry/pkg/domain"
	"appregistry/pkg/platform/sentinel"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db querier
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Insert(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, subject, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(u.ID), strings.ToLower(u.Email), u.FirstName, u.LastName, u.Subject, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, subject, created_at FROM users WHERE id = $1`,
		uuid.UUID(userID),
	))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, subject, created_at FROM users WHERE email = $1`,
		strings.ToLower(email),
	))
}

func (s *PostgresStore) UpdateSubject(ctx context.Context, userID id.UserID, subject string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET subject = $2 WHERE id = $1`,
		uuid.UUID(userID), subject,
	)
	if err != nil {
		return fmt.Errorf("update user subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*User, error) {
	var (
		u   User
		raw uuid.UUID
	)
	if err := row.Scan(&raw, &u.Email, &u.FirstName, &u.LastName, &u.Subject, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(raw)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
