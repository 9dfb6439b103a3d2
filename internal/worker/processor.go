// Package worker runs queued ingestion batches inside the asynq server.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/model"
	"github.com/dharsanguruparan/vaultlink/internal/queue"
)

// Runner processes one batch. *ingest.Pipeline satisfies it.
type Runner interface {
	Process(ctx context.Context, events []model.Event) (*model.Link, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	runner Runner
	log    zerolog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(runner Runner, log zerolog.Logger) *Processor {
	return &Processor{runner: runner, log: log.With().Str("component", "worker").Logger()}
}

// Handler registers the ingest batch handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.IngestBatchTask, p.handleBatch)
	return mux
}

// handleBatch fails the task only when nothing of the batch was linked. A
// partially stored batch already has its link and is not worth re-running.
func (p *Processor) handleBatch(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeBatch(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	link, err := p.runner.Process(ctx, payload.Events)
	switch {
	case err != nil && link == nil:
		p.log.Error().Err(err).Str("group_key", payload.GroupKey).Int("events", len(payload.Events)).Msg("batch failed")
		return err
	case err != nil:
		p.log.Warn().Err(err).Str("group_key", payload.GroupKey).Str("link_id", link.ID).Msg("batch partially stored")
	case link != nil:
		p.log.Info().Str("group_key", payload.GroupKey).Str("link_id", link.ID).Msg("batch processed")
	default:
		p.log.Info().Str("group_key", payload.GroupKey).Msg("batch had no files")
	}
	return nil
}
