package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// RunIDField is the field name for the run identifier in stream messages.
	RunIDField = "run_id"

	// MetadataField is the field name for additional metadata.
	MetadataField = "metadata"

	// EnqueuedAtField is the field name for enqueue timestamp.
	EnqueuedAtField = "enqueued_at"

	// Default max stream length to prevent unbounded growth.
	defaultMaxStreamLen = 10000
)

// Producer handles enqueueing run stage messages to Redis Streams.
type Producer struct {
	client       *StreamsClient
	maxStreamLen int64
}

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	MaxStreamLen int64 // Maximum stream length (0 = default)
}

// NewProducer creates a new stage message producer.
func NewProducer(client *StreamsClient, cfg ProducerConfig) *Producer {
	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = defaultMaxStreamLen
	}

	return &Producer{
		client:       client,
		maxStreamLen: maxLen,
	}
}

// Enqueue adds a run to a stage's stream.
func (p *Producer) Enqueue(ctx context.Context, stage Stage, runID string, metadata map[string]any) (string, error) {
	if runID == "" {
		return "", errors.New("run ID cannot be empty")
	}
	if !stage.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, string(stage))
	}

	values := map[string]any{
		RunIDField:      runID,
		EnqueuedAtField: time.Now().UTC().Format(time.RFC3339),
	}

	if metadata != nil {
		metaData, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("failed to serialize metadata: %w", err)
		}
		values[MetadataField] = string(metaData)
	}

	stream := p.client.StreamName(stage)
	messageID, err := p.client.XAdd(ctx, stream, values)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue run to stream %s: %w", stream, err)
	}

	return messageID, nil
}

// TrimStream trims a stage's stream to the maximum length.
func (p *Producer) TrimStream(ctx context.Context, stage Stage) error {
	stream := p.client.StreamName(stage)
	return p.client.XTrimMaxLen(ctx, stream, p.maxStreamLen)
}

// TrimAllStreams trims all stage streams to the maximum length.
func (p *Producer) TrimAllStreams(ctx context.Context) error {
	for _, stage := range AllStages() {
		if err := p.TrimStream(ctx, stage); err != nil {
			return fmt.Errorf("failed to trim stream %s: %w", stage.String(), err)
		}
	}
	return nil
}

// GetQueueDepth returns the current depth of a stage's stream.
func (p *Producer) GetQueueDepth(ctx context.Context, stage Stage) (int64, error) {
	stream := p.client.StreamName(stage)
	return p.client.XLen(ctx, stream)
}

// GetAllQueueDepths returns the depth of every stage stream.
func (p *Producer) GetAllQueueDepths(ctx context.Context) (map[Stage]int64, error) {
	depths := make(map[Stage]int64, len(AllStages()))

	for _, stage := range AllStages() {
		depth, err := p.GetQueueDepth(ctx, stage)
		if err != nil {
			return depths, fmt.Errorf("failed to get depth for %s: %w", stage.String(), err)
		}
		depths[stage] = depth
	}

	return depths, nil
}
