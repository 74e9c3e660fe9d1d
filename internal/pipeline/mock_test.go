package pipeline

import (
	"context"

	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/store"
)

type selectCall struct {
	table   string
	filters []store.Filter
}

type updateCall struct {
	table     string
	predicate []store.Filter
	payload   model.Row
}

type insertCall struct {
	table string
	rows  []model.Row
}

// fakeStore records every call and answers selects through an optional
// script function.
type fakeStore struct {
	selectFn  func(call selectCall) ([]model.Row, error)
	updateN   int64
	updateErr error
	insertErr error

	selects []selectCall
	updates []updateCall
	inserts []insertCall
}

func (f *fakeStore) SelectRows(_ context.Context, table string, filters []store.Filter) ([]model.Row, error) {
	call := selectCall{table: table, filters: filters}
	f.selects = append(f.selects, call)
	if f.selectFn == nil {
		return nil, nil
	}
	return f.selectFn(call)
}

func (f *fakeStore) UpdateRows(_ context.Context, table string, predicate []store.Filter, payload model.Row) (int64, error) {
	f.updates = append(f.updates, updateCall{table: table, predicate: predicate, payload: payload})
	return f.updateN, f.updateErr
}

func (f *fakeStore) InsertRows(_ context.Context, table string, rows []model.Row) error {
	f.inserts = append(f.inserts, insertCall{table: table, rows: rows})
	return f.insertErr
}

func (f *fakeStore) InsertMessage(context.Context, *model.Message) (int64, error) {
	return 0, nil
}

func (f *fakeStore) GetMessage(context.Context, int64) (*model.Message, error) {
	return nil, nil
}

func (f *fakeStore) RecentMessages(context.Context, int) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

// predicateFor returns the value an update predicated on field carried, or
// "" when no such update happened.
func (f *fakeStore) predicateFor(field string) string {
	for _, u := range f.updates {
		for _, p := range u.predicate {
			if p.Field == field {
				return p.Value.(string)
			}
		}
	}
	return ""
}

type fakeLLM struct {
	completeReply string
	completeErr   error
	completeCalls int

	extractResult model.Row
	extractErr    error
	extractCalls  []string

	matchResult      model.Row
	matchErr         error
	matchCalls       int
	returnMatch      model.Row
	returnMatchErr   error
	returnMatchCalls int
}

func (f *fakeLLM) Complete(context.Context, string) (string, error) {
	f.completeCalls++
	return f.completeReply, f.completeErr
}

func (f *fakeLLM) ExtractJSON(_ context.Context, prompt string) (model.Row, error) {
	f.extractCalls = append(f.extractCalls, prompt)
	return f.extractResult, f.extractErr
}

func (f *fakeLLM) MatchCandidate(context.Context, string, []model.Row) (model.Row, error) {
	f.matchCalls++
	return f.matchResult, f.matchErr
}

func (f *fakeLLM) MatchReturnCandidate(context.Context, string, []model.Row) (model.Row, error) {
	f.returnMatchCalls++
	return f.returnMatch, f.returnMatchErr
}
