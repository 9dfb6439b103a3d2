// Package processing runs flushed ingestion batches on a bounded pool of
// goroutines fed by a buffered channel.
package processing

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/model"
)

// ErrStopped is returned by Dispatch after Stop or once the workers' context
// is done.
var ErrStopped = errors.New("processor stopped")

var jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vaultlink_processing_jobs_total",
	Help: "Batches run by the in-process pool, by outcome.",
}, []string{"outcome"})

// Job is one flushed batch.
type Job struct {
	GroupKey string
	Events   []model.Event
}

// Runner processes one batch. *ingest.Pipeline satisfies it.
type Runner interface {
	Process(ctx context.Context, events []model.Event) (*model.Link, error)
}

// Processor consumes Jobs with a fixed number of workers.
type Processor struct {
	runner  Runner
	queue   chan Job
	workers int
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	done    <-chan struct{}
	wg      sync.WaitGroup
}

// New builds a Processor with queue capacity tied to worker count.
func New(runner Runner, workers int, log zerolog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		runner:  runner,
		queue:   make(chan Job, workers*4),
		workers: workers,
		log:     log.With().Str("component", "processing").Logger(),
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled or the
// queue is drained after Stop.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	p.done = ctx.Done()
	p.mu.Unlock()
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Dispatch queues a batch, blocking while the queue is full so that a burst
// slows the caller down instead of losing batches. It gives up when ctx is
// cancelled or the workers are gone.
func (p *Processor) Dispatch(ctx context.Context, groupKey string, events []model.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		jobsTotal.WithLabelValues("rejected").Inc()
		return ErrStopped
	}
	select {
	case p.queue <- Job{GroupKey: groupKey, Events: events}:
		return nil
	case <-ctx.Done():
		jobsTotal.WithLabelValues("rejected").Inc()
		return ctx.Err()
	case <-p.done:
		jobsTotal.WithLabelValues("rejected").Inc()
		return ErrStopped
	}
}

// Stop refuses new jobs, lets the workers finish what is queued and waits
// for them.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(ctx, job)
		}
	}
}

func (p *Processor) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			jobsTotal.WithLabelValues("panic").Inc()
			p.log.Error().Interface("panic", r).Str("group_key", job.GroupKey).Msg("batch panicked")
		}
	}()
	link, err := p.runner.Process(ctx, job.Events)
	switch {
	case err != nil && link == nil:
		jobsTotal.WithLabelValues("failed").Inc()
		p.log.Error().Err(err).Str("group_key", job.GroupKey).Int("events", len(job.Events)).Msg("batch failed, events dropped")
	case err != nil:
		jobsTotal.WithLabelValues("partial").Inc()
		p.log.Warn().Err(err).Str("group_key", job.GroupKey).Str("link_id", link.ID).Msg("batch partially stored")
	default:
		jobsTotal.WithLabelValues("ok").Inc()
	}
}
