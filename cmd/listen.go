package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/feed"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Process messages as they arrive via Postgres notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Store.Driver != "postgres" && cfg.Store.Driver != "" {
			return eris.New("listen requires the postgres store driver")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		l := feed.New(cfg.Store.DatabaseURL,
			time.Duration(cfg.Listen.ReconnectSecs)*time.Second,
			func(ctx context.Context, id int64) {
				msg, err := e.Store.GetMessage(ctx, id)
				if err != nil {
					zap.L().Error("fetching notified message failed",
						zap.Int64("message_id", id),
						zap.Error(err))
					return
				}
				if err := processMessage(ctx, e, msg); err != nil {
					zap.L().Error("message failed",
						zap.Int64("message_id", id),
						zap.Error(err))
				}
			})

		return l.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
