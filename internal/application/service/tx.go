package service

import (
	"context"

	"appregistry/internal/application/store"
)

// PassthroughTx satisfies Tx without transactional semantics. The
// in-memory store is already atomic per call, so tests and local
// development run against the store directly; the Postgres runner lives
// in cmd/server.
type PassthroughTx struct {
	Store store.Store
}

func (t PassthroughTx) RunInTx(_ context.Context, fn func(store.Store) error) error {
	return fn(t.Store)
}
