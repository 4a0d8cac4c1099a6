package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"appregistry/internal/application/models"
	id "appregistry/pkg/domain"
	"appregistry/pkg/platform/sentinel"
)

// Accent folding for label and tag search, applied symmetrically to the
// stored value and the query term. The list mirrors what pkg/textfold
// strips for the in-memory store: precomposed Latin letters whose NFD
// form is a base letter plus combining marks.
const (
	accentFrom = "àáâãäåèéêëìíîïòóôõöùúûüçñýÿ"
	accentTo   = "aaaaaaeeeeiiiiooooouuuucnyy"
)

// PostgresStore persists application aggregates across the applications,
// lifecycles, actors, compliances, external_resources and metadata tables.
type PostgresStore struct {
	db querier
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewPostgres constructs a PostgreSQL-backed application store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Insert(ctx context.Context, app *models.Application) error {
	m := app.Metadata
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (id, created_at, created_by, updated_at, updated_by)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.CreatedAt, uuid.UUID(m.CreatedBy), m.UpdatedAt, uuid.UUID(m.UpdatedBy),
	); err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}

	var parent any
	if app.ParentID != nil {
		parent = uuid.UUID(*app.ParentID)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO applications (id, label, short_name, logo, description, purposes, tags, owner_id, parent_id, metadata_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(app.ID), app.Label, app.ShortName, app.Logo, app.Description,
		pq.Array(app.Purposes), pq.Array(app.Tags), uuid.UUID(app.OwnerID), parent, m.ID,
	); err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrForeignKey
		}
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert application: %w", err)
	}

	lc := app.Lifecycle
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO lifecycles (id, application_id, status, first_production_date, planned_decommissioning_date)
		 VALUES ($1, $2, $3, $4, $5)`,
		lc.ID, uuid.UUID(app.ID), string(lc.Status), lc.FirstProductionDate, lc.PlannedDecommissioningDate,
	); err != nil {
		return fmt.Errorf("insert lifecycle: %w", err)
	}

	for _, a := range app.Actors {
		if err := s.insertActor(ctx, app.ID, a); err != nil {
			return err
		}
	}
	for _, c := range app.Compliances {
		if err := s.insertCompliance(ctx, app.ID, c); err != nil {
			return err
		}
	}
	for _, r := range app.ExternalResources {
		if err := s.insertResource(ctx, app.ID, r); err != nil {
			return err
		}
	}
	return nil
}

const selectAggregate = `
SELECT a.id, a.label, a.short_name, a.logo, a.description, a.purposes, a.tags,
       a.owner_id, a.parent_id,
       l.id, l.status, l.first_production_date, l.planned_decommissioning_date,
       m.id, m.created_at, m.created_by, m.updated_at, m.updated_by
FROM applications a
JOIN lifecycles l ON l.application_id = a.id
JOIN metadata m ON m.id = a.metadata_id`

func (s *PostgresStore) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.scanOne(s.db.QueryRowContext(ctx, selectAggregate+` WHERE a.id = $1`, uuid.UUID(appID)))
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, []*models.Application{app}); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *PostgresStore) List(ctx context.Context, page, limit int) ([]*models.Application, error) {
	q := models.SearchQuery{Page: page, Limit: limit}.Normalize()
	return s.queryAggregates(ctx,
		selectAggregate+` ORDER BY m.updated_at DESC, a.id LIMIT $1 OFFSET $2`,
		q.Limit, q.Offset(),
	)
}

func (s *PostgresStore) Search(ctx context.Context, q models.SearchQuery) ([]*models.Application, error) {
	q = q.Normalize()

	var (
		where []string
		args  []any
	)
	if q.Label != "" {
		args = append(args, "%"+strings.ToLower(q.Label)+"%")
		where = append(where, fmt.Sprintf(
			"translate(lower(a.label), '%s', '%s') LIKE translate($%d, '%s', '%s')",
			accentFrom, accentTo, len(args), accentFrom, accentTo,
		))
	}
	for _, tag := range q.Tags {
		args = append(args, "%"+strings.ToLower(tag)+"%")
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(a.tags) t WHERE translate(lower(t), '%s', '%s') LIKE translate($%d, '%s', '%s'))",
			accentFrom, accentTo, len(args), accentFrom, accentTo,
		))
	}

	query := selectAggregate
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, q.Limit, q.Offset())
	query += fmt.Sprintf(" ORDER BY m.updated_at DESC, a.id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return s.queryAggregates(ctx, query, args...)
}

func (s *PostgresStore) FindByResourceLink(ctx context.Context, link string) ([]*models.Application, error) {
	return s.queryAggregates(ctx,
		selectAggregate+` WHERE a.id IN (SELECT application_id FROM external_resources WHERE link = $1)
		 ORDER BY m.updated_at DESC, a.id`,
		link,
	)
}

func (s *PostgresStore) Apply(ctx context.Context, appID id.ApplicationID, upd Update) error {
	var metadataID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata_id FROM applications WHERE id = $1`, uuid.UUID(appID),
	).Scan(&metadataID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("load application: %w", err)
	}

	if err := s.applyScalars(ctx, appID, upd); err != nil {
		return err
	}
	if upd.Lifecycle != nil {
		if err := s.applyLifecycle(ctx, appID, *upd.Lifecycle); err != nil {
			return err
		}
	}
	if upd.Actors != nil {
		if err := s.applyActors(ctx, appID, *upd.Actors); err != nil {
			return err
		}
	}
	if upd.Compliances != nil {
		if err := s.applyCompliances(ctx, appID, *upd.Compliances); err != nil {
			return err
		}
	}
	if upd.ExternalResources != nil {
		if err := s.applyResources(ctx, appID, *upd.ExternalResources); err != nil {
			return err
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE metadata SET updated_at = $2, updated_by = $3 WHERE id = $1`,
		metadataID, upd.UpdatedAt, uuid.UUID(upd.UpdatedBy),
	); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, appID id.ApplicationID) error {
	var metadataID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata_id FROM applications WHERE id = $1`, uuid.UUID(appID),
	).Scan(&metadataID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("load application: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM applications WHERE id = $1`, uuid.UUID(appID),
	); err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM metadata WHERE id = $1`, metadataID,
	); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	return nil
}

func (s *PostgresStore) ParentOf(ctx context.Context, appID id.ApplicationID) (*id.ApplicationID, error) {
	var parent uuid.NullUUID
	err := s.db.QueryRowContext(ctx,
		`SELECT parent_id FROM applications WHERE id = $1`, uuid.UUID(appID),
	).Scan(&parent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load parent: %w", err)
	}
	if !parent.Valid {
		return nil, nil
	}
	parentID := id.ApplicationID(parent.UUID)
	return &parentID, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM applications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) applyScalars(ctx context.Context, appID id.ApplicationID, upd Update) error {
	var (
		set  []string
		args = []any{uuid.UUID(appID)}
	)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Label != nil {
		add("label", *upd.Label)
	}
	if upd.ShortName != nil {
		add("short_name", *upd.ShortName)
	}
	if upd.Logo != nil {
		add("logo", *upd.Logo)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Purposes != nil {
		add("purposes", pq.Array(*upd.Purposes))
	}
	if upd.Tags != nil {
		add("tags", pq.Array(*upd.Tags))
	}
	if upd.Parent != nil {
		if upd.Parent.Disconnect {
			set = append(set, "parent_id = NULL")
		} else {
			add("parent_id", uuid.UUID(upd.Parent.Parent))
		}
	}
	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE applications SET %s WHERE id = $1", strings.Join(set, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrForeignKey
		}
		return fmt.Errorf("update application: %w", err)
	}
	return nil
}

func (s *PostgresStore) applyLifecycle(ctx context.Context, appID id.ApplicationID, ch LifecycleChange) error {
	var (
		set  []string
		args = []any{uuid.UUID(appID)}
	)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if ch.Status != nil {
		add("status", string(*ch.Status))
	}
	if ch.FirstProductionDate != nil {
		add("first_production_date", *ch.FirstProductionDate)
	}
	if ch.ClearPlannedDecommissioning {
		set = append(set, "planned_decommissioning_date = NULL")
	} else if ch.PlannedDecommissioningDate != nil {
		add("planned_decommissioning_date", *ch.PlannedDecommissioningDate)
	}
	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE lifecycles SET %s WHERE application_id = $1", strings.Join(set, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update lifecycle: %w", err)
	}
	return nil
}

func (s *PostgresStore) applyActors(ctx context.Context, appID id.ApplicationID, ch ActorChanges) error {
	for _, actorID := range ch.Delete {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM actors WHERE id = $1 AND application_id = $2`, actorID, uuid.UUID(appID),
		); err != nil {
			return fmt.Errorf("delete actor: %w", err)
		}
	}
	for _, a := range ch.Update {
		var userID any
		if a.UserID != nil {
			userID = uuid.UUID(*a.UserID)
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE actors SET role = $3, actor_type = $4, email = $5, user_id = $6, organization = $7
			 WHERE id = $1 AND application_id = $2`,
			a.ID, uuid.UUID(appID), a.Role, string(a.Type), a.Email, userID, a.Organization,
		); err != nil {
			return fmt.Errorf("update actor: %w", err)
		}
	}
	for _, a := range ch.Create {
		if err := s.insertActor(ctx, appID, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) applyCompliances(ctx context.Context, appID id.ApplicationID, ch ComplianceChanges) error {
	for _, complianceID := range ch.Delete {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM compliances WHERE id = $1 AND application_id = $2`, complianceID, uuid.UUID(appID),
		); err != nil {
			return fmt.Errorf("delete compliance: %w", err)
		}
	}
	for _, c := range ch.Update {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE compliances SET type = $3, name = $4, status = $5, validity_start = $6,
			        validity_end = $7, score_value = $8, score_unit = $9, notes = $10
			 WHERE id = $1 AND application_id = $2`,
			c.ID, uuid.UUID(appID), string(c.Type), c.Name, string(c.Status),
			c.ValidityStart, c.ValidityEnd, c.ScoreValue, c.ScoreUnit, c.Notes,
		); err != nil {
			return fmt.Errorf("update compliance: %w", err)
		}
	}
	for _, c := range ch.Create {
		if err := s.insertCompliance(ctx, appID, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) applyResources(ctx context.Context, appID id.ApplicationID, ch ExternalResourceChanges) error {
	for _, resourceID := range ch.Delete {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM external_resources WHERE id = $1 AND application_id = $2`, resourceID, uuid.UUID(appID),
		); err != nil {
			return fmt.Errorf("delete external resource: %w", err)
		}
	}
	for _, r := range ch.Update {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE external_resources SET link = $3, description = $4, type = $5
			 WHERE id = $1 AND application_id = $2`,
			r.ID, uuid.UUID(appID), r.Link, r.Description, string(r.Type),
		); err != nil {
			return fmt.Errorf("update external resource: %w", err)
		}
	}
	for _, r := range ch.Create {
		if err := s.insertResource(ctx, appID, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) insertActor(ctx context.Context, appID id.ApplicationID, a models.Actor) error {
	var userID any
	if a.UserID != nil {
		userID = uuid.UUID(*a.UserID)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO actors (id, application_id, role, actor_type, email, user_id, organization)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, uuid.UUID(appID), a.Role, string(a.Type), a.Email, userID, a.Organization,
	); err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrForeignKey
		}
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

func (s *PostgresStore) insertCompliance(ctx context.Context, appID id.ApplicationID, c models.Compliance) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO compliances (id, application_id, type, name, status, validity_start, validity_end, score_value, score_unit, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, uuid.UUID(appID), string(c.Type), c.Name, string(c.Status),
		c.ValidityStart, c.ValidityEnd, c.ScoreValue, c.ScoreUnit, c.Notes,
	); err != nil {
		return fmt.Errorf("insert compliance: %w", err)
	}
	return nil
}

func (s *PostgresStore) insertResource(ctx context.Context, appID id.ApplicationID, r models.ExternalResource) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO external_resources (id, application_id, link, description, type)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.ID, uuid.UUID(appID), r.Link, r.Description, string(r.Type),
	); err != nil {
		return fmt.Errorf("insert external resource: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryAggregates(ctx context.Context, query string, args ...any) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	if len(apps) == 0 {
		return []*models.Application{}, nil
	}
	if err := s.loadChildren(ctx, apps); err != nil {
		return nil, err
	}
	return apps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*models.Application, error) {
	var (
		app       models.Application
		appID     uuid.UUID
		ownerID   uuid.UUID
		parentID  uuid.NullUUID
		createdBy uuid.UUID
		updatedBy uuid.UUID
	)
	err := row.Scan(
		&appID, &app.Label, &app.ShortName, &app.Logo, &app.Description,
		pq.Array(&app.Purposes), pq.Array(&app.Tags), &ownerID, &parentID,
		&app.Lifecycle.ID, &app.Lifecycle.Status,
		&app.Lifecycle.FirstProductionDate, &app.Lifecycle.PlannedDecommissioningDate,
		&app.Metadata.ID, &app.Metadata.CreatedAt, &createdBy,
		&app.Metadata.UpdatedAt, &updatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	app.ID = id.ApplicationID(appID)
	app.OwnerID = id.UserID(ownerID)
	if parentID.Valid {
		pid := id.ApplicationID(parentID.UUID)
		app.ParentID = &pid
	}
	app.Metadata.CreatedBy = id.UserID(createdBy)
	app.Metadata.UpdatedBy = id.UserID(updatedBy)
	return &app, nil
}

// loadChildren attaches the three child collections to the given
// aggregates with one query per table.
func (s *PostgresStore) loadChildren(ctx context.Context, apps []*models.Application) error {
	byID := make(map[uuid.UUID]*models.Application, len(apps))
	ids := make([]uuid.UUID, 0, len(apps))
	for _, app := range apps {
		byID[uuid.UUID(app.ID)] = app
		ids = append(ids, uuid.UUID(app.ID))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT application_id, id, role, actor_type, email, user_id, organization
		 FROM actors WHERE application_id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("query actors: %w", err)
	}
	for rows.Next() {
		var (
			appID  uuid.UUID
			a      models.Actor
			userID uuid.NullUUID
		)
		if err := rows.Scan(&appID, &a.ID, &a.Role, &a.Type, &a.Email, &userID, &a.Organization); err != nil {
			rows.Close()
			return fmt.Errorf("scan actor: %w", err)
		}
		if userID.Valid {
			uid := id.UserID(userID.UUID)
			a.UserID = &uid
		}
		if app := byID[appID]; app != nil {
			app.Actors = append(app.Actors, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate actors: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT application_id, id, type, name, status, validity_start, validity_end, score_value, score_unit, notes
		 FROM compliances WHERE application_id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("query compliances: %w", err)
	}
	for rows.Next() {
		var (
			appID uuid.UUID
			c     models.Compliance
		)
		if err := rows.Scan(&appID, &c.ID, &c.Type, &c.Name, &c.Status,
			&c.ValidityStart, &c.ValidityEnd, &c.ScoreValue, &c.ScoreUnit, &c.Notes); err != nil {
			rows.Close()
			return fmt.Errorf("scan compliance: %w", err)
		}
		if app := byID[appID]; app != nil {
			app.Compliances = append(app.Compliances, c)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate compliances: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT application_id, id, link, description, type
		 FROM external_resources WHERE application_id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("query external resources: %w", err)
	}
	for rows.Next() {
		var (
			appID uuid.UUID
			r     models.ExternalResource
		)
		if err := rows.Scan(&appID, &r.ID, &r.Link, &r.Description, &r.Type); err != nil {
			rows.Close()
			return fmt.Errorf("scan external resource: %w", err)
		}
		if app := byID[appID]; app != nil {
			app.ExternalResources = append(app.ExternalResources, r)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate external resources: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
