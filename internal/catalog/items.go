package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// Items stores uploads keyed by their natural key.
type Items struct {
	store ItemStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewItems wraps an ItemStore.
func NewItems(store ItemStore, log zerolog.Logger) *Items {
	return &Items{
		store: store,
		log:   log.With().Str("component", "catalog.items").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Store inserts item unless an item with the same FileUniqueID already
// exists, in which case the existing record is returned as-is. A duplicate is
// never an error.
func (s *Items) Store(ctx context.Context, item *model.Item) (*model.Item, error) {
	if item == nil || item.FileUniqueID == "" {
		return nil, apperr.Validationf("item has no natural key")
	}
	if !item.Kind.Valid() {
		return nil, apperr.Validationf("item %s has unknown kind %q", item.FileUniqueID, item.Kind)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	stored, inserted, err := s.store.InsertIfAbsent(ctx, item)
	if err != nil {
		return nil, apperr.Upstream(err, "store item "+item.FileUniqueID)
	}
	if !inserted {
		s.log.Debug().
			Str("file_unique_id", item.FileUniqueID).
			Str("item_id", stored.ID).
			Msg("duplicate skipped")
	}
	return stored, nil
}

// Get returns a single item by id.
func (s *Items) Get(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Upstream(err, "find item "+id)
	}
	return item, nil
}
