// Package ingest turns channel posts into stored items and share links.
// Posts that belong to one media group are collected by a debounce batcher
// and processed together so the whole group gets a single link.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// DefaultWindow is how long a media group stays open after its last event.
const DefaultWindow = 1500 * time.Millisecond

// Dispatcher receives flushed batches. groupKey is empty for singleton
// batches of ungrouped events.
type Dispatcher interface {
	Dispatch(ctx context.Context, groupKey string, events []model.Event) error
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, groupKey string, events []model.Event) error

// Dispatch calls f.
func (f DispatchFunc) Dispatch(ctx context.Context, groupKey string, events []model.Event) error {
	return f(ctx, groupKey, events)
}

// Timer is the part of *time.Timer the batcher uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc is the production value.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// BatcherOptions configures a Batcher.
type BatcherOptions struct {
	Window    time.Duration
	AfterFunc AfterFunc
	Logger    zerolog.Logger
	// BaseContext is passed to the dispatcher when a timer fires.
	BaseContext context.Context
}

type pendingBatch struct {
	events []model.Event
	gen    uint64
	timer  Timer
}

// Batcher debounces grouped events. Every Submit for a group cancels the
// group's timer and arms a new one; when a timer fires the group's events are
// removed and dispatched as one batch, in arrival order. The generation
// counter makes a timer that lost the race with a newer Submit a no-op, so a
// batch is flushed exactly once.
type Batcher struct {
	mu      sync.Mutex
	pending map[string]*pendingBatch
	closed  bool

	window    time.Duration
	afterFunc AfterFunc
	dispatch  Dispatcher
	log       zerolog.Logger
	baseCtx   context.Context
}

// NewBatcher builds a Batcher that flushes into dispatch.
func NewBatcher(dispatch Dispatcher, opt BatcherOptions) *Batcher {
	if opt.Window <= 0 {
		opt.Window = DefaultWindow
	}
	if opt.AfterFunc == nil {
		opt.AfterFunc = stdAfterFunc
	}
	if opt.BaseContext == nil {
		opt.BaseContext = context.Background()
	}
	return &Batcher{
		pending:   make(map[string]*pendingBatch),
		window:    opt.Window,
		afterFunc: opt.AfterFunc,
		dispatch:  dispatch,
		log:       opt.Logger.With().Str("component", "ingest.batcher").Logger(),
		baseCtx:   opt.BaseContext,
	}
}

// Submit accepts one event. Events without a group key are dispatched
// immediately as a singleton batch.
func (b *Batcher) Submit(ctx context.Context, ev model.Event) {
	eventsSubmitted.Inc()
	if ev.GroupKey == "" {
		b.flush(ctx, "", []model.Event{ev})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		batchesFlushed.WithLabelValues("dropped").Inc()
		b.log.Error().
			Str("group_key", ev.GroupKey).
			Int64("message_id", ev.MessageID).
			Msg("batcher closed, event dropped")
		return
	}

	entry, ok := b.pending[ev.GroupKey]
	if !ok {
		entry = &pendingBatch{}
		b.pending[ev.GroupKey] = entry
		pendingGroups.Set(float64(len(b.pending)))
	}
	entry.events = append(entry.events, ev)
	entry.gen++
	if entry.timer != nil {
		entry.timer.Stop()
	}
	key, gen := ev.GroupKey, entry.gen
	entry.timer = b.afterFunc(b.window, func() { b.fire(key, gen) })
}

// Pending reports how many groups are waiting to be flushed.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close stops every pending timer and flushes the waiting groups right away.
// Events submitted after Close are dropped.
func (b *Batcher) Close(ctx context.Context) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	drained := b.pending
	b.pending = make(map[string]*pendingBatch)
	pendingGroups.Set(0)
	b.mu.Unlock()

	for key, entry := range drained {
		entry.timer.Stop()
		b.flush(ctx, key, entry.events)
	}
}

func (b *Batcher) fire(key string, gen uint64) {
	b.mu.Lock()
	entry, ok := b.pending[key]
	if !ok || entry.gen != gen {
		b.mu.Unlock()
		return
	}
	delete(b.pending, key)
	pendingGroups.Set(float64(len(b.pending)))
	b.mu.Unlock()

	b.flush(b.baseCtx, key, entry.events)
}

// flush hands a batch to the dispatcher. A failure is logged and the batch
// is dropped; there is no retry.
func (b *Batcher) flush(ctx context.Context, key string, events []model.Event) {
	if err := b.dispatch.Dispatch(ctx, key, events); err != nil {
		batchesFlushed.WithLabelValues("dropped").Inc()
		b.log.Error().Err(err).
			Str("group_key", key).
			Int("events", len(events)).
			Msg("batch flush failed, events dropped")
		return
	}
	batchesFlushed.WithLabelValues("dispatched").Inc()
	b.log.Debug().Str("group_key", key).Int("events", len(events)).Msg("batch dispatched")
}
