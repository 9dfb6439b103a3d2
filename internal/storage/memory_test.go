package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

func newItem(unique, name string, at time.Time) *model.Item {
	return &model.Item{
		FileID:       "file-" + unique,
		FileUniqueID: unique,
		Name:         name,
		Kind:         model.KindDocument,
		CreatedAt:    at,
	}
}

func TestInsertIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, inserted, err := m.InsertIfAbsent(ctx, newItem("u1", "a.mkv", base))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, first.ID)

	second, inserted, err := m.InsertIfAbsent(ctx, newItem("u1", "renamed.mkv", base.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first, second)
}

func TestInsertIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	results := make([]*model.Item, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			it, _, err := m.InsertIfAbsent(ctx, newItem("same", fmt.Sprintf("n%d", i), time.Time{}))
			assert.NoError(t, err)
			results[i] = it
		}(i)
	}
	wg.Wait()

	for _, it := range results[1:] {
		assert.Equal(t, results[0], it)
	}
	_, total, err := m.SearchItems(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestReturnedItemsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	it, _, err := m.InsertIfAbsent(ctx, newItem("u1", "a", time.Time{}))
	require.NoError(t, err)

	it.Name = "mutated"
	again, err := m.FindByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
}

func TestFindByIDMissing(t *testing.T) {
	_, err := NewMemoryStore().FindByID(context.Background(), "nope")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestCreateLinkCollision(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.CreateLink(ctx, &model.Link{ID: "abc12345", ItemIDs: []string{"x"}}))

	err := m.CreateLink(ctx, &model.Link{ID: "abc12345", ItemIDs: []string{"y"}})
	assert.True(t, apperr.IsCode(err, apperr.CodeCollision))

	got, err := m.FindLink(ctx, "abc12345")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.ItemIDs)
}

func TestSearchItemsMatchesFieldsAndOrders(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	title := "Night Train"

	byName := newItem("u1", "NIGHT.train.mkv", base)
	byCaption := newItem("u2", "b.mkv", base.Add(time.Minute))
	byCaption.Caption = "the night train special"
	byTitle := newItem("u3", "c.mkv", base.Add(2*time.Minute))
	byTitle.Metadata.Title = &title
	byKeyword := newItem("u4", "d.mkv", base.Add(3*time.Minute))
	byKeyword.Keywords = []string{"nighttrain"}
	other := newItem("u5", "unrelated.mkv", base.Add(4*time.Minute))

	for _, it := range []*model.Item{byName, byCaption, byTitle, byKeyword, other} {
		_, _, err := m.InsertIfAbsent(ctx, it)
		require.NoError(t, err)
	}

	page, total, err := m.SearchItems(ctx, "night", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 4)
	assert.Equal(t, "u4", page[0].FileUniqueID)
	assert.Equal(t, "u3", page[1].FileUniqueID)
	assert.Equal(t, "u2", page[2].FileUniqueID)
	assert.Equal(t, "u1", page[3].FileUniqueID)

	page, total, err = m.SearchItems(ctx, "night", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "u2", page[0].FileUniqueID)

	page, total, err = m.SearchItems(ctx, "night", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, page)
}

func TestLinksReferencingNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.CreateLink(ctx, &model.Link{ID: "old00000", ItemIDs: []string{"a", "b"}, CreatedAt: base}))
	require.NoError(t, m.CreateLink(ctx, &model.Link{ID: "new00000", ItemIDs: []string{"b"}, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, m.CreateLink(ctx, &model.Link{ID: "zzz00000", ItemIDs: []string{"c"}, CreatedAt: base.Add(2 * time.Hour)}))

	links, err := m.LinksReferencing(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "new00000", links[0].ID)
	assert.Equal(t, "old00000", links[1].ID)
}
