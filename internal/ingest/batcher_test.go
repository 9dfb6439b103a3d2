package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// fakeScheduler is a manual clock for AfterFunc. When leaky is set, Stop
// reports failure and the callback still runs, as happens when a real timer
// has already fired.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
	leaky  bool
}

type fakeTimer struct {
	s       *fakeScheduler
	due     time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.leaky || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, due: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock and runs every due timer in due order.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.fired && !t.stopped && t.due <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].due < due[j].due })
	for _, t := range due {
		t.f()
	}
}

type batch struct {
	key    string
	events []model.Event
}

type recorder struct {
	mu      sync.Mutex
	batches []batch
	err     error
}

func (r *recorder) Dispatch(_ context.Context, key string, events []model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch{key: key, events: events})
	return r.err
}

func (r *recorder) snapshot() []batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]batch(nil), r.batches...)
}

func grouped(key string, msg int64) model.Event {
	return model.Event{ChannelID: -100, MessageID: msg, GroupKey: key}
}

func newTestBatcher(rec Dispatcher, sched *fakeScheduler) *Batcher {
	return NewBatcher(rec, BatcherOptions{
		Window:    1500 * time.Millisecond,
		AfterFunc: sched.AfterFunc,
		Logger:    zerolog.Nop(),
	})
}

func TestBatcherMergesWithinWindow(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	sched := &fakeScheduler{}
	b := newTestBatcher(rec, sched)

	b.Submit(ctx, grouped("g1", 1))
	sched.Advance(time.Second)
	b.Submit(ctx, grouped("g1", 2))
	sched.Advance(time.Second)
	assert.Empty(t, rec.snapshot(), "the second event must re-arm the window")

	sched.Advance(600 * time.Millisecond)
	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].key)
	require.Len(t, got[0].events, 2)
	assert.Equal(t, int64(1), got[0].events[0].MessageID)
	assert.Equal(t, int64(2), got[0].events[1].MessageID)
	assert.Zero(t, b.Pending())
}

func TestBatcherStartsNewBatchAfterWindow(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	sched := &fakeScheduler{}
	b := newTestBatcher(rec, sched)

	b.Submit(ctx, grouped("g1", 1))
	sched.Advance(2 * time.Second)
	b.Submit(ctx, grouped("g1", 2))
	sched.Advance(2 * time.Second)

	got := rec.snapshot()
	require.Len(t, got, 2)
	assert.Len(t, got[0].events, 1)
	assert.Len(t, got[1].events, 1)
	assert.Equal(t, int64(2), got[1].events[0].MessageID)
}

func TestBatcherKeepsGroupsApart(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	sched := &fakeScheduler{}
	b := newTestBatcher(rec, sched)

	b.Submit(ctx, grouped("a", 1))
	b.Submit(ctx, grouped("b", 2))
	b.Submit(ctx, grouped("a", 3))
	assert.Equal(t, 2, b.Pending())
	sched.Advance(2 * time.Second)

	got := rec.snapshot()
	require.Len(t, got, 2)
	byKey := map[string]int{}
	for _, bt := range got {
		byKey[bt.key] = len(bt.events)
	}
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, byKey)
}

func TestBatcherDispatchesUngroupedImmediately(t *testing.T) {
	rec := &recorder{}
	sched := &fakeScheduler{}
	b := newTestBatcher(rec, sched)

	b.Submit(context.Background(), model.Event{MessageID: 9})

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Empty(t, got[0].key)
	assert.Len(t, got[0].events, 1)
	assert.Zero(t, b.Pending())
}

func TestBatcherStaleTimerDoesNotFlushTwice(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	sched := &fakeScheduler{leaky: true}
	b := newTestBatcher(rec, sched)

	b.Submit(ctx, grouped("g1", 1))
	sched.Advance(time.Second)
	b.Submit(ctx, grouped("g1", 2))
	// The first timer was not stoppable and fires now; it must be ignored.
	sched.Advance(600 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	sched.Advance(time.Second)
	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Len(t, got[0].events, 2)
}

func TestBatcherFlushErrorDropsBatch(t *testing.T) {
	rec := &recorder{err: errors.New("pool full")}
	sched := &fakeScheduler{}
	b := newTestBatcher(rec, sched)

	b.Submit(context.Background(), grouped("g1", 1))
	sched.Advance(2 * time.Second)
	assert.Len(t, rec.snapshot(), 1)
	assert.Zero(t, b.Pending())

	sched.Advance(10 * time.Second)
	assert.Len(t, rec.snapshot(), 1, "no retry after a failed flush")
}

func TestBatcherCloseFlushesPending(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	sched := &fakeScheduler{}
	b := newTestBatcher(rec, sched)

	b.Submit(ctx, grouped("g1", 1))
	b.Submit(ctx, grouped("g1", 2))
	b.Close(ctx)

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Len(t, got[0].events, 2)

	sched.Advance(5 * time.Second)
	b.Submit(ctx, grouped("g2", 3))
	assert.Len(t, rec.snapshot(), 1)
	assert.Zero(t, b.Pending())
}

func TestBatcherRealTimersConcurrent(t *testing.T) {
	rec := &recorder{}
	b := NewBatcher(rec, BatcherOptions{Window: 200 * time.Millisecond, Logger: zerolog.Nop()})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		for m := 0; m < 5; m++ {
			wg.Add(1)
			go func(g, m int) {
				defer wg.Done()
				b.Submit(context.Background(), grouped(fmt.Sprintf("g%d", g), int64(g*10+m)))
			}(g, m)
		}
	}
	wg.Wait()

	countEvents := func() int {
		n := 0
		for _, bt := range rec.snapshot() {
			n += len(bt.events)
		}
		return n
	}
	require.Eventually(t, func() bool { return countEvents() == 40 }, 3*time.Second, 10*time.Millisecond)
	assert.Len(t, rec.snapshot(), 8)
	assert.Zero(t, b.Pending())
}
