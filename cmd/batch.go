package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ordersync/internal/model"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process the most recent messages in the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		limit := batchLimit
		if limit <= 0 {
			limit = cfg.Batch.Limit
		}
		msgs, err := e.Store.RecentMessages(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "fetch messages")
		}

		return processBatch(ctx, e, msgs, cfg.Batch.MaxConcurrentMessages)
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of messages to process (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// processBatch runs messages through the pipeline with bounded concurrency.
// Individual failures are logged and counted, never abort the batch.
func processBatch(ctx context.Context, e *env, msgs []model.Message, concurrency int) error {
	if len(msgs) == 0 {
		zap.L().Info("no messages to process")
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("messages", len(msgs)),
		zap.Int("concurrency", concurrency),
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i := range msgs {
		msg := msgs[i]
		g.Go(func() error {
			if err := processMessage(gctx, e, &msg); err != nil {
				failed.Add(1)
				zap.L().Error("message failed",
					zap.Int64("message_id", msg.ID),
					zap.Error(err))
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
