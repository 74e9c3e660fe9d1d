package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/monitoring"
	"github.com/sells-group/ordersync/internal/pipeline"
	"github.com/sells-group/ordersync/internal/store"
)

type stubStore struct {
	updates int
}

func (s *stubStore) SelectRows(context.Context, string, []store.Filter) ([]model.Row, error) {
	return nil, nil
}

func (s *stubStore) UpdateRows(context.Context, string, []store.Filter, model.Row) (int64, error) {
	s.updates++
	return 0, nil
}

func (s *stubStore) InsertRows(context.Context, string, []model.Row) error { return nil }

func (s *stubStore) InsertMessage(context.Context, *model.Message) (int64, error) {
	return 1, nil
}

func (s *stubStore) GetMessage(context.Context, int64) (*model.Message, error) {
	return nil, errors.New("not found")
}

func (s *stubStore) RecentMessages(context.Context, int) ([]model.Message, error) {
	return nil, nil
}

func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Close() error                  { return nil }

type stubLLM struct {
	extractErr error
}

func (l *stubLLM) Complete(context.Context, string) (string, error) { return "promos", nil }

func (l *stubLLM) ExtractJSON(context.Context, string) (model.Row, error) {
	return nil, l.extractErr
}

func (l *stubLLM) MatchCandidate(context.Context, string, []model.Row) (model.Row, error) {
	return nil, nil
}

func (l *stubLLM) MatchReturnCandidate(context.Context, string, []model.Row) (model.Row, error) {
	return nil, nil
}

func testEnv(st store.Store, llm pipeline.LLM) *env {
	metrics := &monitoring.Collector{}
	return &env{
		Store:     st,
		Processor: pipeline.New(st, llm, extract.DefaultPrompts(), metrics),
		Metrics:   metrics,
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	e := testEnv(&stubStore{}, &stubLLM{})
	require.NoError(t, processBatch(context.Background(), e, nil, 4))
}

func TestProcessBatchSurvivesFailures(t *testing.T) {
	e := testEnv(&stubStore{}, &stubLLM{extractErr: errors.New("overloaded")})
	msgs := []model.Message{
		{ID: 1, Category: "retailer order confirmation"},
		{ID: 2, Category: "promos"},
	}

	// The first message fails extraction; the batch still completes.
	require.NoError(t, processBatch(context.Background(), e, msgs, 2))

	snap := e.Metrics.Snapshot()
	assert.Equal(t, int64(1), snap["failed"])
	assert.Equal(t, int64(1), snap["processed"])
}

func TestProcessBatchDefaultsConcurrency(t *testing.T) {
	e := testEnv(&stubStore{}, &stubLLM{})
	msgs := []model.Message{{ID: 1, Category: "promos"}}
	require.NoError(t, processBatch(context.Background(), e, msgs, 0))
}
