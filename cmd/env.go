package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/dedupe"
	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/monitoring"
	"github.com/sells-group/ordersync/internal/pipeline"
	"github.com/sells-group/ordersync/internal/store"
	"github.com/sells-group/ordersync/pkg/anthropic"
)

// env bundles the runtime dependencies shared by the commands.
type env struct {
	Store     store.Store
	Service   *extract.Service
	Processor *pipeline.Processor
	Guard     *dedupe.Guard
	Metrics   *monitoring.Collector
}

func (e *env) Close() {
	if e.Guard != nil {
		_ = e.Guard.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres", "":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	prompts := extract.DefaultPrompts()
	if cfg.Prompts.Path != "" {
		if err := prompts.LoadOverrides(cfg.Prompts.Path); err != nil {
			st.Close()
			return nil, err
		}
	}

	if cfg.Anthropic.Key == "" {
		st.Close()
		return nil, eris.New("anthropic.key is required")
	}
	client := anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerMin)
	svc := extract.New(client, extract.Config{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   int64(cfg.Anthropic.MaxTokens),
		Temperature: cfg.Anthropic.Temperature,
		Prompts:     prompts,
	})

	metrics := &monitoring.Collector{}
	guard := dedupe.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		time.Duration(cfg.Redis.TTLHours)*time.Hour)

	return &env{
		Store:     st,
		Service:   svc,
		Processor: pipeline.New(st, svc, prompts, metrics),
		Guard:     guard,
		Metrics:   metrics,
	}, nil
}

// processMessage runs one message through the duplicate guard and the
// processor. A processing failure releases the guard mark so the message can
// be retried.
func processMessage(ctx context.Context, e *env, msg *model.Message) error {
	if !e.Guard.FirstSeen(ctx, msg.ID) {
		zap.L().Debug("duplicate message skipped", zap.Int64("message_id", msg.ID))
		return nil
	}
	if _, err := e.Processor.Process(ctx, msg); err != nil {
		e.Guard.Forget(ctx, msg.ID)
		return err
	}
	return nil
}
