package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/counselrank/audit-service/internal/logger"
)

// HandlerFunc processes one stage of one run.
type HandlerFunc func(ctx context.Context, runID string) error

// RunFailer marks a run as failed when a stage handler errors.
type RunFailer interface {
	MarkFailed(ctx context.Context, id, message string) error
}

// MessageSource is the consumer side the worker reads from.
type MessageSource interface {
	Initialize(ctx context.Context) error
	Read(ctx context.Context) ([]*Message, error)
	Acknowledge(ctx context.Context, msg *Message) error
	ConsumerGroup() string
	ConsumerID() string
}

// StageEnqueuer enqueues a run onto a stage stream.
type StageEnqueuer interface {
	Enqueue(ctx context.Context, stage Stage, runID string, metadata map[string]any) (string, error)
}

// Worker consumes stage messages and dispatches them to registered
// handlers. A completed stage enqueues the next one; a failed stage
// marks the run failed and the pipeline stops there.
type Worker struct {
	consumer MessageSource
	producer StageEnqueuer
	runs     RunFailer
	handlers map[Stage]HandlerFunc
	logger   logger.Interface
}

// NewWorker creates a worker with no handlers registered.
func NewWorker(consumer MessageSource, producer StageEnqueuer, runs RunFailer, log logger.Interface) *Worker {
	return &Worker{
		consumer: consumer,
		producer: producer,
		runs:     runs,
		handlers: make(map[Stage]HandlerFunc),
		logger:   log.WithComponent("worker"),
	}
}

// Register installs the handler for a stage, replacing any previous one.
func (w *Worker) Register(stage Stage, handler HandlerFunc) {
	w.handlers[stage] = handler
}

// Run consumes and processes messages until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.consumer.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize consumer: %w", err)
	}

	w.logger.Info("worker started",
		"consumer_group", w.consumer.ConsumerGroup(),
		"consumer_id", w.consumer.ConsumerID())

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping")
			return nil
		}

		messages, err := w.consumer.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.WithError(err).Error("failed to read stage messages")
			continue
		}

		for _, msg := range messages {
			w.process(ctx, msg)
		}
	}
}

// process runs one message through its stage handler and acknowledges
// it. Handler failure marks the run failed; the message is still
// acknowledged because the run will not be retried.
func (w *Worker) process(ctx context.Context, msg *Message) {
	log := w.logger.With("run_id", msg.RunID, "stage", msg.Stage.String())

	handler, ok := w.handlers[msg.Stage]
	if !ok {
		log.Warn("no handler registered for stage")
		w.acknowledge(ctx, msg)
		return
	}

	log.Info("processing stage")

	if err := handler(ctx, msg.RunID); err != nil {
		log.WithError(err).Error("stage failed")

		message := fmt.Sprintf("%s failed: %v", msg.Stage.String(), err)
		if failErr := w.runs.MarkFailed(ctx, msg.RunID, message); failErr != nil {
			log.WithError(failErr).Error("failed to mark run failed")
		}

		w.acknowledge(ctx, msg)
		return
	}

	if next, hasNext := msg.Stage.Next(); hasNext {
		if _, err := w.producer.Enqueue(ctx, next, msg.RunID, nil); err != nil {
			log.WithError(err).Error("failed to enqueue next stage", "next_stage", next.String())

			message := fmt.Sprintf("could not advance run to %s stage", next.String())
			if failErr := w.runs.MarkFailed(ctx, msg.RunID, message); failErr != nil {
				log.WithError(failErr).Error("failed to mark run failed")
			}
		}
	}

	w.acknowledge(ctx, msg)
	log.Info("stage completed")
}

func (w *Worker) acknowledge(ctx context.Context, msg *Message) {
	if err := w.consumer.Acknowledge(ctx, msg); err != nil {
		w.logger.WithError(err).Error("failed to acknowledge message",
			"message_id", msg.MessageID,
			"stage", msg.Stage.String())
	}
}
