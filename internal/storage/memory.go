// Package storage contains the in-memory persistence layer. It satisfies the
// same item, link and search contracts as the Postgres repositories and backs
// tests and VAULTLINK_STORE=memory.
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

type itemRow struct {
	item *model.Item
	seq  uint64
}

type linkRow struct {
	link *model.Link
	seq  uint64
}

// MemoryStore keeps items and links in maps guarded by one RWMutex. Records
// are copied in and out so callers never share memory with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	items    map[string]*itemRow
	byUnique map[string]string
	links    map[string]*linkRow
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]*itemRow),
		byUnique: make(map[string]string),
		links:    make(map[string]*linkRow),
	}
}

// InsertIfAbsent stores item unless its FileUniqueID is already present.
func (m *MemoryStore) InsertIfAbsent(_ context.Context, item *model.Item) (*model.Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byUnique[item.FileUniqueID]; ok {
		return copyItem(m.items[id].item), false, nil
	}
	rec := copyItem(item)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.seq++
	m.items[rec.ID] = &itemRow{item: rec, seq: m.seq}
	m.byUnique[rec.FileUniqueID] = rec.ID
	return copyItem(rec), true, nil
}

// FindByID returns one item or a not-found error.
func (m *MemoryStore) FindByID(_ context.Context, id string) (*model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFoundf("item %s not found", id)
	}
	return copyItem(row.item), nil
}

// FindByIDs returns the items that exist among ids, in the order given.
func (m *MemoryStore) FindByIDs(_ context.Context, ids []string) ([]*model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Item, 0, len(ids))
	for _, id := range ids {
		if row, ok := m.items[id]; ok {
			out = append(out, copyItem(row.item))
		}
	}
	return out, nil
}

// CreateLink stores link, failing with a collision error when the id is taken.
func (m *MemoryStore) CreateLink(_ context.Context, link *model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[link.ID]; ok {
		return apperr.Collisionf("link %s already exists", link.ID)
	}
	rec := copyLink(link)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.seq++
	m.links[rec.ID] = &linkRow{link: rec, seq: m.seq}
	return nil
}

// FindLink returns one link or a not-found error.
func (m *MemoryStore) FindLink(_ context.Context, id string) (*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.links[id]
	if !ok {
		return nil, apperr.NotFoundf("link %s not found", id)
	}
	return copyLink(row.link), nil
}

// SearchItems returns one page of items whose name, caption, title or any
// keyword contains query, ignoring case, newest first, plus the total match
// count.
func (m *MemoryStore) SearchItems(_ context.Context, query string, offset, limit int) ([]*model.Item, int, error) {
	needle := strings.ToLower(query)

	m.mu.RLock()
	matched := make([]*itemRow, 0)
	for _, row := range m.items {
		if matches(row.item, needle) {
			matched = append(matched, row)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.item.CreatedAt.Equal(b.item.CreatedAt) {
			return a.item.CreatedAt.After(b.item.CreatedAt)
		}
		return a.seq > b.seq
	})

	total := len(matched)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]*model.Item, 0, end-offset)
	for _, row := range matched[offset:end] {
		out = append(out, copyItem(row.item))
	}
	return out, total, nil
}

// LinksReferencing returns every link sharing at least one id with itemIDs,
// newest first.
func (m *MemoryStore) LinksReferencing(_ context.Context, itemIDs []string) ([]*model.Link, error) {
	want := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = struct{}{}
	}

	m.mu.RLock()
	rows := make([]*linkRow, 0)
	for _, row := range m.links {
		for _, id := range row.link.ItemIDs {
			if _, ok := want[id]; ok {
				rows = append(rows, row)
				break
			}
		}
	}
	m.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.link.CreatedAt.Equal(b.link.CreatedAt) {
			return a.link.CreatedAt.After(b.link.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]*model.Link, 0, len(rows))
	for _, row := range rows {
		out = append(out, copyLink(row.link))
	}
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op; it lets MemoryStore stand in wherever a closable store is expected.
func (m *MemoryStore) Close() {}

func matches(it *model.Item, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(it.Name), needle) ||
		strings.Contains(strings.ToLower(it.Caption), needle) {
		return true
	}
	if t := it.Metadata.Title; t != nil && strings.Contains(strings.ToLower(*t), needle) {
		return true
	}
	for _, kw := range it.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}

func copyItem(it *model.Item) *model.Item {
	c := *it
	c.Keywords = append([]string(nil), it.Keywords...)
	return &c
}

func copyLink(l *model.Link) *model.Link {
	c := *l
	c.ItemIDs = append([]string(nil), l.ItemIDs...)
	return &c
}
