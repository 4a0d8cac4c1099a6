// Package postgres opens the shared database handle and applies the schema
// on boot. The registry keeps its schema small enough that declarative
// CREATE IF NOT EXISTS statements serve as migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the registry schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id         UUID PRIMARY KEY,
    email      TEXT NOT NULL UNIQUE,
    first_name TEXT NOT NULL DEFAULT '',
    last_name  TEXT NOT NULL DEFAULT '',
    subject    TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS metadata (
    id         UUID PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    created_by UUID NOT NULL REFERENCES users (id),
    updated_at TIMESTAMPTZ NOT NULL,
    updated_by UUID NOT NULL REFERENCES users (id)
);

CREATE TABLE IF NOT EXISTS applications (
    id          UUID PRIMARY KEY,
    label       TEXT NOT NULL,
    short_name  TEXT NOT NULL DEFAULT '',
    logo        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    purposes    TEXT[] NOT NULL DEFAULT '{}',
    tags        TEXT[] NOT NULL DEFAULT '{}',
    owner_id    UUID NOT NULL REFERENCES users (id),
    parent_id   UUID REFERENCES applications (id) ON DELETE SET NULL,
    metadata_id UUID NOT NULL REFERENCES metadata (id)
);

CREATE TABLE IF NOT EXISTS lifecycles (
    id                           UUID PRIMARY KEY,
    application_id               UUID NOT NULL UNIQUE REFERENCES applications (id) ON DELETE CASCADE,
    status                       TEXT NOT NULL,
    first_production_date        DATE NOT NULL,
    planned_decommissioning_date DATE
);

CREATE TABLE IF NOT EXISTS actors (
    id             UUID PRIMARY KEY,
    application_id UUID NOT NULL REFERENCES applications (id) ON DELETE CASCADE,
    role           TEXT NOT NULL DEFAULT '',
    actor_type     TEXT NOT NULL DEFAULT '',
    email          TEXT NOT NULL DEFAULT '',
    user_id        UUID REFERENCES users (id),
    organization   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS compliances (
    id             UUID PRIMARY KEY,
    application_id UUID NOT NULL REFERENCES applications (id) ON DELETE CASCADE,
    type           TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT '',
    validity_start DATE,
    validity_end   DATE,
    score_value    TEXT NOT NULL DEFAULT '',
    score_unit     TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS external_resources (
    id             UUID PRIMARY KEY,
    application_id UUID NOT NULL REFERENCES applications (id) ON DELETE CASCADE,
    link           TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    type           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS anomaly_notifications (
    id             UUID PRIMARY KEY,
    application_id UUID NOT NULL REFERENCES applications (id) ON DELETE CASCADE,
    notifier_id    UUID NOT NULL REFERENCES users (id),
    description    TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_metadata ON applications (metadata_id);
CREATE INDEX IF NOT EXISTS idx_actors_application ON actors (application_id);
CREATE INDEX IF NOT EXISTS idx_compliances_application ON compliances (application_id);
CREATE INDEX IF NOT EXISTS idx_external_resources_application ON external_resources (application_id);
CREATE INDEX IF NOT EXISTS idx_external_resources_link ON external_resources (link);
CREATE INDEX IF NOT EXISTS idx_anomaly_notifications_application ON anomaly_notifications (application_id);
CREATE INDEX IF NOT EXISTS idx_anomaly_notifications_notifier ON anomaly_notifications (notifier_id);
`
