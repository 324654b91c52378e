package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Default consumer group name.
	defaultConsumerGroup = "audit-workers"

	// Default block timeout for reading from streams.
	defaultBlockTimeout = 5 * time.Second

	// Default count of messages to read per batch.
	defaultBatchSize = 10

	// Default minimum idle time before claiming pending messages.
	// Must exceed the longest legitimate stage execution (the crawl
	// stage's 30-minute duration budget), or a second worker reclaims
	// and re-runs a stage that is still in progress.
	defaultClaimMinIdle = 45 * time.Minute

	// Maximum pending messages to check at once.
	maxPendingCheck = 100

	// streamsPerStage is the number of stream entries per stage (stream name + ">").
	streamsPerStage = 2
)

// Consumer handles reading stage messages from Redis Streams.
type Consumer struct {
	client        *StreamsClient
	consumerGroup string
	consumerID    string
	blockTimeout  time.Duration
	batchSize     int64
	claimMinIdle  time.Duration
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	ConsumerGroup string        // Consumer group name
	ConsumerID    string        // Unique consumer identifier
	BlockTimeout  time.Duration // Block timeout for reads (0 = default)
	BatchSize     int64         // Number of messages per read (0 = default)
	ClaimMinIdle  time.Duration // Min idle time before claiming (0 = default)
}

// Message represents a stage message read from the queue.
type Message struct {
	MessageID  string
	Stage      Stage
	RunID      string
	EnqueuedAt time.Time
	Metadata   map[string]any
}

// NewConsumer creates a new stage message consumer.
func NewConsumer(client *StreamsClient, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = defaultClaimMinIdle
	}

	return &Consumer{
		client:        client,
		consumerGroup: group,
		consumerID:    cfg.ConsumerID,
		blockTimeout:  blockTimeout,
		batchSize:     batchSize,
		claimMinIdle:  claimMinIdle,
	}, nil
}

// Initialize creates consumer groups for all stage streams.
func (c *Consumer) Initialize(ctx context.Context) error {
	for _, stage := range AllStages() {
		stream := c.client.StreamName(stage)
		if err := c.client.CreateConsumerGroup(ctx, stream, c.consumerGroup); err != nil {
			return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
		}
	}
	return nil
}

// Read reads stage messages, reclaiming stale pending messages first.
func (c *Consumer) Read(ctx context.Context) ([]*Message, error) {
	reclaimed := c.reclaimPending(ctx)
	if len(reclaimed) > 0 {
		return reclaimed, nil
	}

	return c.readNewMessages(ctx)
}

// ReadFromStage reads messages from a single stage stream only.
func (c *Consumer) ReadFromStage(ctx context.Context, stage Stage) ([]*Message, error) {
	stream := c.client.StreamName(stage)
	streams := []string{stream, ">"}

	result, err := c.client.XReadGroup(ctx, c.consumerGroup, c.consumerID, streams, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No messages available
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}

	return c.parseMessages(result, stage), nil
}

// Acknowledge acknowledges successful processing of a message.
func (c *Consumer) Acknowledge(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}

	stream := c.client.StreamName(msg.Stage)
	return c.client.XAck(ctx, stream, c.consumerGroup, msg.MessageID)
}

// GetPendingCount returns the count of pending messages for a stage.
func (c *Consumer) GetPendingCount(ctx context.Context, stage Stage) (int64, error) {
	stream := c.client.StreamName(stage)
	pending, err := c.client.XPending(ctx, stream, c.consumerGroup)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return pending.Count, nil
}

// readNewMessages reads new messages from all stage streams in
// pipeline order.
func (c *Consumer) readNewMessages(ctx context.Context) ([]*Message, error) {
	stages := AllStages()
	streams := make([]string, 0, len(stages)*streamsPerStage)
	for _, stage := range stages {
		streams = append(streams, c.client.StreamName(stage))
	}
	for range stages {
		streams = append(streams, ">") // Read new messages
	}

	result, err := c.client.XReadGroup(ctx, c.consumerGroup, c.consumerID, streams, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No messages available
		}
		return nil, fmt.Errorf("failed to read from streams: %w", err)
	}

	var messages []*Message
	for _, stream := range result {
		stage := c.stageForStream(stream.Stream)
		if !stage.IsValid() {
			continue
		}
		messages = append(messages, c.parseMessages([]redis.XStream{stream}, stage)...)
	}

	return messages, nil
}

// reclaimPending claims pending messages that have exceeded the idle
// threshold, so messages from a dead worker are not lost.
func (c *Consumer) reclaimPending(ctx context.Context) []*Message {
	var reclaimed []*Message

	for _, stage := range AllStages() {
		stream := c.client.StreamName(stage)

		pending, err := c.client.XPendingExt(ctx, stream, c.consumerGroup, "-", "+", maxPendingCheck)
		if err != nil {
			continue
		}

		var idsToReclaim []string
		for _, entry := range pending {
			if entry.Idle >= c.claimMinIdle {
				idsToReclaim = append(idsToReclaim, entry.ID)
			}
		}

		if len(idsToReclaim) == 0 {
			continue
		}

		claimed, claimErr := c.client.XClaim(
			ctx, stream, c.consumerGroup, c.consumerID, c.claimMinIdle, idsToReclaim...,
		)
		if claimErr != nil {
			continue
		}

		for _, msg := range claimed {
			parsed, parseErr := c.parseMessage(msg, stage)
			if parseErr != nil {
				continue // Skip malformed messages
			}
			reclaimed = append(reclaimed, parsed)
		}
	}

	return reclaimed
}

// stageForStream maps a full stream key back to its stage.
func (c *Consumer) stageForStream(stream string) Stage {
	for _, stage := range AllStages() {
		if c.client.StreamName(stage) == stream {
			return stage
		}
	}
	return ""
}

// parseMessages parses the messages of one or more streams belonging
// to a single stage, skipping malformed entries.
func (c *Consumer) parseMessages(streams []redis.XStream, stage Stage) []*Message {
	var messages []*Message

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, err := c.parseMessage(msg, stage)
			if err != nil {
				continue
			}
			messages = append(messages, parsed)
		}
	}

	return messages
}

// parseMessage parses a single stream entry into a Message.
func (c *Consumer) parseMessage(msg redis.XMessage, stage Stage) (*Message, error) {
	runID, ok := msg.Values[RunIDField].(string)
	if !ok || runID == "" {
		return nil, errors.New("missing or invalid run ID")
	}

	message := &Message{
		MessageID: msg.ID,
		Stage:     stage,
		RunID:     runID,
	}

	if enqueuedStr, hasEnqueued := msg.Values[EnqueuedAtField].(string); hasEnqueued {
		if t, parseErr := time.Parse(time.RFC3339, enqueuedStr); parseErr == nil {
			message.EnqueuedAt = t
		}
	}

	if metaStr, hasMeta := msg.Values[MetadataField].(string); hasMeta {
		var metadata map[string]any
		if unmarshalErr := json.Unmarshal([]byte(metaStr), &metadata); unmarshalErr == nil {
			message.Metadata = metadata
		}
	}

	return message, nil
}

// ConsumerGroup returns the consumer group name.
func (c *Consumer) ConsumerGroup() string {
	return c.consumerGroup
}

// ConsumerID returns the consumer ID.
func (c *Consumer) ConsumerID() string {
	return c.consumerID
}
