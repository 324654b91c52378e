// Package worker implements the worker command, the queue-driven
// pipeline runner. It consumes stage messages from Redis Streams,
// executes the corresponding stage, and advances completed runs to the
// next stage.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cmdcommon "github.com/counselrank/audit-service/cmd/common"
	"github.com/counselrank/audit-service/internal/queue"
)

// Command returns the worker command.
func Command() *cobra.Command {
	var consumerID string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume stage messages and run the audit pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return err
			}

			pipeline, err := cmdcommon.NewPipeline(deps)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			if consumerID == "" {
				consumerID = defaultConsumerID()
			}

			redisCfg := deps.Config.Redis
			client, err := queue.NewStreamsClient(queue.StreamsConfig{
				Addr:     redisCfg.Addr,
				Password: redisCfg.Password,
				DB:       redisCfg.DB,
				Prefix:   redisCfg.Prefix,
			})
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer client.Close()

			consumer, err := queue.NewConsumer(client, queue.ConsumerConfig{
				ConsumerID: consumerID,
			})
			if err != nil {
				return fmt.Errorf("create consumer: %w", err)
			}
			producer := queue.NewProducer(client, queue.ProducerConfig{})

			w := queue.NewWorker(consumer, producer, pipeline.Runs, deps.Logger)
			w.Register(queue.StageCrawl, func(ctx context.Context, runID string) error {
				return cmdcommon.RunCrawlStage(ctx, deps, pipeline, runID)
			})
			w.Register(queue.StageAnalyze, func(ctx context.Context, runID string) error {
				return cmdcommon.RunAnalyzeStage(ctx, deps, pipeline, runID)
			})
			w.Register(queue.StageScore, func(ctx context.Context, runID string) error {
				_, err := cmdcommon.RunScoreStage(ctx, deps, pipeline, runID)
				return err
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&consumerID, "consumer-id", "", "unique consumer identifier (default: hostname-suffixed)")
	return cmd
}

// defaultConsumerID derives a stable-enough consumer name from the
// hostname plus a random suffix so parallel workers never collide.
func defaultConsumerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}
