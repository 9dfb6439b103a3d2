// Package queue carries flushed ingestion batches to the worker process over
// asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/vaultlink/internal/model"
)

const (
	// IngestBatchTask is enqueued once per flushed batch.
	IngestBatchTask = "ingest:batch"
	// IngestQueue is the asynq queue the worker consumes.
	IngestQueue = "ingest"
)

// BatchPayload is serialized into the task payload.
type BatchPayload struct {
	GroupKey string        `json:"group_key,omitempty"`
	Events   []model.Event `json:"events"`
}

// Enqueuer is an ingest.Dispatcher that hands batches to asynq.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// Dispatch enqueues the batch. Batches are not retried; a failing task goes
// straight to the archived set where an operator can inspect it.
func (e *Enqueuer) Dispatch(ctx context.Context, groupKey string, events []model.Event) error {
	task, err := NewBatchTask(BatchPayload{GroupKey: groupKey, Events: events})
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(0), asynq.Queue(IngestQueue)); err != nil {
		return fmt.Errorf("enqueue ingest batch: %w", err)
	}
	return nil
}

// NewBatchTask encodes payload into an asynq task.
func NewBatchTask(payload BatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(IngestBatchTask, data), nil
}

// DecodeBatch reads the payload back out of a task.
func DecodeBatch(task *asynq.Task) (BatchPayload, error) {
	var payload BatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BatchPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
