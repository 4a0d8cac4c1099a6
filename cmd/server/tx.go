package main

import (
	"context"
	"database/sql"
	"time"

	appservice "appregistry/internal/application/service"
	appstore "appregistry/internal/application/store"
	dErrors "appregistry/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// applicationPostgresTx runs application store operations inside one
// database transaction.
type applicationPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newApplicationPostgresTx(db *sql.DB) *applicationPostgresTx {
	return &applicationPostgresTx{db: db}
}

func (t *applicationPostgresTx) RunInTx(ctx context.Context, fn func(store appstore.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(appstore.NewPostgresTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

var _ appservice.Tx = (*applicationPostgresTx)(nil)
