package processing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultlink/internal/model"
)

type runnerFunc func(ctx context.Context, events []model.Event) (*model.Link, error)

func (f runnerFunc) Process(ctx context.Context, events []model.Event) (*model.Link, error) {
	return f(ctx, events)
}

func TestProcessorRunsDispatchedJobs(t *testing.T) {
	var processed atomic.Int64
	p := New(runnerFunc(func(_ context.Context, events []model.Event) (*model.Link, error) {
		processed.Add(int64(len(events)))
		return &model.Link{ID: "abcd1234"}, nil
	}), 2, zerolog.Nop())
	p.Start(context.Background())

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Dispatch(context.Background(), "g", []model.Event{{MessageID: int64(i)}, {MessageID: 99}}))
	}
	p.Stop()
	assert.Equal(t, int64(8), processed.Load())
}

func TestProcessorDispatchBlocksWhenFull(t *testing.T) {
	release := make(chan struct{})
	p := New(runnerFunc(func(context.Context, []model.Event) (*model.Link, error) {
		<-release
		return nil, nil
	}), 1, zerolog.Nop())
	p.Start(context.Background())

	// One job is held by the worker, four fill the buffer.
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Dispatch(context.Background(), "g", nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := p.Dispatch(ctx, "g", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	close(release)
	p.Stop()
}

func TestProcessorBurstIsNotLost(t *testing.T) {
	var processed atomic.Int64
	p := New(runnerFunc(func(context.Context, []model.Event) (*model.Link, error) {
		time.Sleep(5 * time.Millisecond)
		processed.Add(1)
		return &model.Link{ID: "abcd1234"}, nil
	}), 2, zerolog.Nop())
	p.Start(context.Background())

	for i := 0; i < 30; i++ {
		require.NoError(t, p.Dispatch(context.Background(), "", []model.Event{{MessageID: int64(i)}}))
	}
	p.Stop()
	assert.Equal(t, int64(30), processed.Load())
}

func TestProcessorDispatchUnblocksWhenWorkersExit(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	p := New(runnerFunc(func(context.Context, []model.Event) (*model.Link, error) {
		<-release
		return nil, nil
	}), 1, zerolog.Nop())
	p.Start(ctx)
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Dispatch(context.Background(), "g", nil))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.Dispatch(context.Background(), "g", nil) }()
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("dispatch stayed blocked after the workers' context was cancelled")
	}
}

func TestProcessorSurvivesFailuresAndPanics(t *testing.T) {
	var calls atomic.Int64
	p := New(runnerFunc(func(_ context.Context, events []model.Event) (*model.Link, error) {
		switch calls.Add(1) {
		case 1:
			panic("boom")
		case 2:
			return nil, errors.New("store down")
		default:
			return &model.Link{ID: "abcd1234"}, errors.New("one item failed")
		}
	}), 1, zerolog.Nop())
	p.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Dispatch(context.Background(), "g", nil))
	}
	p.Stop()
	assert.Equal(t, int64(3), calls.Load())
}

func TestProcessorRejectsAfterStop(t *testing.T) {
	p := New(runnerFunc(func(context.Context, []model.Event) (*model.Link, error) { return nil, nil }), 1, zerolog.Nop())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
	assert.ErrorIs(t, p.Dispatch(context.Background(), "g", nil), ErrStopped)
}

func TestProcessorStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(runnerFunc(func(context.Context, []model.Event) (*model.Link, error) { return nil, nil }), 3, zerolog.Nop())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after cancel")
	}
}
