package anomaly

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "appregistry/pkg/domain"
	"appregistry/pkg/platform/sentinel"
)

// PostgresStore persists notifications in PostgreSQL.
type PostgresStore struct {
	db querier
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewPostgres constructs a PostgreSQL-backed notification store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectNotification = `
SELECT id, application_id, notifier_id, description, status, created_at, updated_at
FROM anomaly_notifications`

func (s *PostgresStore) Insert(ctx context.Context, n *Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO anomaly_notifications (id, application_id, notifier_id, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(n.ID), uuid.UUID(n.ApplicationID), uuid.UUID(n.NotifierID),
		n.Description, string(n.Status), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return sentinel.ErrConflict
			case "23503":
				return sentinel.ErrForeignKey
			}
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, notificationID id.NotificationID) (*Notification, error) {
	row := s.db.QueryRowContext(ctx, selectNotification+` WHERE id = $1`, uuid.UUID(notificationID))
	n, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) FindAll(ctx context.Context) ([]*Notification, error) {
	return s.queryMany(ctx, selectNotification+` ORDER BY created_at DESC, id`)
}

func (s *PostgresStore) FindByNotifier(ctx context.Context, notifierID id.UserID) ([]*Notification, error) {
	return s.queryMany(ctx,
		selectNotification+` WHERE notifier_id = $1 ORDER BY created_at DESC, id`,
		uuid.UUID(notifierID),
	)
}

func (s *PostgresStore) FindByApplication(ctx context.Context, appID id.ApplicationID) ([]*Notification, error) {
	return s.queryMany(ctx,
		selectNotification+` WHERE application_id = $1 ORDER BY created_at DESC, id`,
		uuid.UUID(appID),
	)
}

func (s *PostgresStore) Update(ctx context.Context, n *Notification) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE anomaly_notifications SET description = $2, status = $3, updated_at = $4 WHERE id = $1`,
		uuid.UUID(n.ID), n.Description, string(n.Status), n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, notificationID id.NotificationID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM anomaly_notifications WHERE id = $1`,
		uuid.UUID(notificationID),
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []*Notification{}
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func scanNotification(scan func(...any) error) (*Notification, error) {
	var (
		n          Notification
		nID        uuid.UUID
		appID      uuid.UUID
		notifierID uuid.UUID
	)
	if err := scan(&nID, &appID, &notifierID, &n.Description, &n.Status, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.ID = id.NotificationID(nID)
	n.ApplicationID = id.ApplicationID(appID)
	n.NotifierID = id.UserID(notifierID)
	return &n, nil
}
