// Package catalog owns the two write paths of the system: storing items
// idempotently by their natural key and issuing share links over them.
package catalog

import (
	"context"

	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// ItemStore persists items. InsertIfAbsent must be atomic on FileUniqueID:
// when a record with the same natural key exists it is returned untouched
// with inserted=false.
type ItemStore interface {
	InsertIfAbsent(ctx context.Context, item *model.Item) (stored *model.Item, inserted bool, err error)
	FindByID(ctx context.Context, id string) (*model.Item, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Item, error)
}

// LinkStore persists links. CreateLink reports a duplicate id with an
// apperr.CodeCollision error and FindLink reports a missing id with
// apperr.CodeNotFound.
type LinkStore interface {
	CreateLink(ctx context.Context, link *model.Link) error
	FindLink(ctx context.Context, id string) (*model.Link, error)
}
