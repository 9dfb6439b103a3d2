package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultlink/internal/catalog"
	"github.com/dharsanguruparan/vaultlink/internal/model"
	"github.com/dharsanguruparan/vaultlink/internal/storage"
)

type fixture struct {
	store    *storage.MemoryStore
	items    *catalog.Items
	links    *countingLinks
	archive  *memArchive
	pipeline *Pipeline
}

type countingLinks struct {
	*catalog.Links
	mu    sync.Mutex
	calls int
}

func (c *countingLinks) Create(ctx context.Context, ids []string) (*model.Link, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Links.Create(ctx, ids)
}

type memArchive struct {
	mu      sync.Mutex
	batches map[string][]model.Event
	err     error
}

func (a *memArchive) PutBatch(_ context.Context, linkID string, events []model.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.batches == nil {
		a.batches = map[string][]model.Event{}
	}
	a.batches[linkID] = events
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	f := &fixture{
		store:   store,
		items:   catalog.NewItems(store, zerolog.Nop()),
		links:   &countingLinks{Links: catalog.NewLinks(store, store, catalog.LinkOptions{Logger: zerolog.Nop()})},
		archive: &memArchive{},
	}
	f.pipeline = NewPipeline(f.items, f.links, PipelineOptions{Archive: f.archive, Logger: zerolog.Nop()})
	return f
}

func docEvent(msg int64, unique, name, group string) model.Event {
	return model.Event{
		ChannelID: -100,
		MessageID: msg,
		GroupKey:  group,
		Payload: &model.Document{
			FileRef:  model.FileRef{FileID: "file-" + unique, FileUniqueID: unique, FileSize: 1024},
			FileName: name,
			MimeType: "video/x-matroska",
		},
	}
}

func TestPipelineSingleDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	link, err := f.pipeline.Process(ctx, []model.Event{docEvent(1, "u1", "Show.Name.S02E05.1080p.mkv", "")})
	require.NoError(t, err)
	require.NotNil(t, link)
	require.Len(t, link.ItemIDs, 1)

	it, err := f.store.FindByID(ctx, link.ItemIDs[0])
	require.NoError(t, err)
	md := it.Metadata
	require.NotNil(t, md.Season)
	require.NotNil(t, md.Episode)
	require.NotNil(t, md.Resolution)
	require.NotNil(t, md.Title)
	assert.Equal(t, 2, *md.Season)
	assert.Equal(t, 5, *md.Episode)
	assert.Equal(t, "1080p", *md.Resolution)
	assert.Equal(t, model.CategorySeries, md.Type)
	assert.Equal(t, "Show Name", *md.Title)
	assert.Equal(t, model.KindDocument, it.Kind)
	assert.Equal(t, int64(1024), it.Size)

	assert.Contains(t, f.archive.batches, link.ID)
}

func TestPipelineGroupThroughBatcher(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sched := &fakeScheduler{}

	var (
		mu      sync.Mutex
		created []*model.Link
	)
	dispatch := DispatchFunc(func(ctx context.Context, _ string, events []model.Event) error {
		link, err := f.pipeline.Process(ctx, events)
		if link != nil {
			mu.Lock()
			created = append(created, link)
			mu.Unlock()
		}
		return err
	})
	b := NewBatcher(dispatch, BatcherOptions{Window: DefaultWindow, AfterFunc: sched.AfterFunc, Logger: zerolog.Nop()})

	b.Submit(ctx, docEvent(1, "u1", "Part.1.mkv", "g1"))
	sched.Advance(500 * time.Millisecond)
	b.Submit(ctx, docEvent(2, "u2", "Part.2.mkv", "g1"))
	assert.Zero(t, f.links.calls, "no link per individual event")

	sched.Advance(DefaultWindow)
	require.Len(t, created, 1)
	assert.Len(t, created[0].ItemIDs, 2)
	assert.Equal(t, 1, f.links.calls)
}

func TestPipelineSkipsEventsWithoutFile(t *testing.T) {
	f := newFixture(t)
	link, err := f.pipeline.Process(context.Background(), []model.Event{
		{MessageID: 1, Caption: "just text"},
		{MessageID: 2, Payload: model.Photo{}},
		{MessageID: 3, Payload: (*model.Video)(nil)},
	})
	assert.NoError(t, err)
	assert.Nil(t, link)
	assert.Zero(t, f.links.calls)
}

func TestPipelineDedupesWithinBatchAndAcrossReplays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	events := []model.Event{
		docEvent(1, "u1", "a.pdf", "g"),
		docEvent(2, "u1", "a-copy.pdf", "g"),
		docEvent(3, "u2", "b.pdf", "g"),
	}

	first, err := f.pipeline.Process(ctx, events)
	require.NoError(t, err)
	require.Len(t, first.ItemIDs, 2)

	replay, err := f.pipeline.Process(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, first.ItemIDs, replay.ItemIDs)
	assert.NotEqual(t, first.ID, replay.ID)

	_, total, err := f.store.SearchItems(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

type flakyItems struct {
	inner   ItemStorer
	failFor string
}

func (f flakyItems) Store(ctx context.Context, it *model.Item) (*model.Item, error) {
	if it.FileUniqueID == f.failFor {
		return nil, errors.New("store unavailable")
	}
	return f.inner.Store(ctx, it)
}

func TestPipelinePartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := NewPipeline(flakyItems{inner: f.items, failFor: "bad"}, f.links, PipelineOptions{Logger: zerolog.Nop()})

	link, err := p.Process(ctx, []model.Event{
		docEvent(1, "good1", "a.pdf", "g"),
		docEvent(2, "bad", "b.pdf", "g"),
		docEvent(3, "good2", "c.pdf", "g"),
	})
	require.NotNil(t, link)
	assert.Len(t, link.ItemIDs, 2)
	require.Error(t, err)
	assert.ErrorContains(t, err, "message 2")
	assert.ErrorContains(t, err, "store unavailable")
}

func TestPipelineAllFailedCreatesNoLink(t *testing.T) {
	f := newFixture(t)
	p := NewPipeline(flakyItems{inner: f.items, failFor: "bad"}, f.links, PipelineOptions{Logger: zerolog.Nop()})

	link, err := p.Process(context.Background(), []model.Event{docEvent(1, "bad", "b.pdf", "")})
	assert.Nil(t, link)
	assert.Error(t, err)
	assert.Zero(t, f.links.calls)
}

func TestPipelineArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.archive.err = errors.New("bucket missing")

	link, err := f.pipeline.Process(context.Background(), []model.Event{docEvent(1, "u1", "a.pdf", "")})
	require.NoError(t, err)
	assert.NotNil(t, link)
}

func TestPipelineDispatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pipeline.Dispatch(context.Background(), "", []model.Event{docEvent(1, "u1", "a.pdf", "")}))
	assert.Equal(t, 1, f.links.calls)
}

func TestPipelineDispatchPartialFailureIsNotAFailedFlush(t *testing.T) {
	f := newFixture(t)
	p := NewPipeline(flakyItems{inner: f.items, failFor: "bad"}, f.links, PipelineOptions{Logger: zerolog.Nop()})

	err := p.Dispatch(context.Background(), "g", []model.Event{
		docEvent(1, "good1", "a.pdf", "g"),
		docEvent(2, "bad", "b.pdf", "g"),
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, f.links.calls)

	err = p.Dispatch(context.Background(), "g2", []model.Event{docEvent(3, "bad", "c.pdf", "g2")})
	assert.Error(t, err)
}
