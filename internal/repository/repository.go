// Package repository implements the item, link and search stores on top of
// Postgres through pgx.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool and pgx.Tx the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the item and link repositories over one connection.
type Store struct {
	*ItemRepository
	*LinkRepository
}

// New builds a Store over db.
func New(db DBTX) *Store {
	return &Store{
		ItemRepository: NewItemRepository(db),
		LinkRepository: NewLinkRepository(db),
	}
}
