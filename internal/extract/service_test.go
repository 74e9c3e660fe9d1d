package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/pkg/anthropic"
)

// fakeClient returns canned replies in order and records requests.
type fakeClient struct {
	replies  []string
	err      error
	requests []anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	reply := ""
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: reply}},
	}, nil
}

func newTestService(c anthropic.Client) *Service {
	return New(c, Config{Model: "test-model"})
}

func TestExtractJSON_ParsesObject(t *testing.T) {
	fake := &fakeClient{replies: []string{`{"order_info": {"order_id": "A1"}, "items": []}`}}
	svc := newTestService(fake)

	row, err := svc.ExtractJSON(context.Background(), "prompt")
	require.NoError(t, err)
	info := row["order_info"].(map[string]any)
	assert.Equal(t, "A1", info["order_id"])

	// The schema system prompt rides along on every extraction call.
	require.Len(t, fake.requests, 1)
	assert.Contains(t, fake.requests[0].System, "ONLY valid JSON")
}

func TestExtractJSON_StripsFencesAndTrailingCommas(t *testing.T) {
	fake := &fakeClient{replies: []string{"```json\n{\"a\": \"b\",}\n```"}}
	svc := newTestService(fake)

	row, err := svc.ExtractJSON(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "b", row.String("a"))
}

func TestExtractJSON_NullReplyMeansNoData(t *testing.T) {
	fake := &fakeClient{replies: []string{"null"}}
	svc := newTestService(fake)

	row, err := svc.ExtractJSON(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestExtractJSON_MalformedIsError(t *testing.T) {
	fake := &fakeClient{replies: []string{"{not json"}}
	svc := newTestService(fake)

	_, err := svc.ExtractJSON(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestExtractJSON_TransportError(t *testing.T) {
	fake := &fakeClient{err: errors.New("boom")}
	svc := newTestService(fake)

	_, err := svc.ExtractJSON(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestComplete_TrimsReply(t *testing.T) {
	fake := &fakeClient{replies: []string{"  refund\n"}}
	svc := newTestService(fake)

	out, err := svc.Complete(context.Background(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, "refund", out)
}

func TestMatchCandidate_RequiresEntryID(t *testing.T) {
	candidates := []model.Row{{"entry_id": "e1", "item_desc": "Blue Hoodie"}}

	fake := &fakeClient{replies: []string{`{"item_desc": "Blue Hoodie"}`}}
	svc := newTestService(fake)
	got, err := svc.MatchCandidate(context.Background(), "hoodie", candidates)
	require.NoError(t, err)
	assert.Nil(t, got)

	fake = &fakeClient{replies: []string{`{"entry_id": "e1", "item_desc": "Blue Hoodie"}`}}
	svc = newTestService(fake)
	got, err = svc.MatchCandidate(context.Background(), "hoodie", candidates)
	require.NoError(t, err)
	assert.Equal(t, "e1", got.String("entry_id"))
}

func TestMatchCandidate_EmptyCandidatesSkipsModel(t *testing.T) {
	fake := &fakeClient{}
	svc := newTestService(fake)

	got, err := svc.MatchCandidate(context.Background(), "hoodie", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, fake.requests)
}

func TestMatchReturnCandidate_AcceptsOnlySuppliedCandidates(t *testing.T) {
	candidates := []model.Row{
		{"entry_id": "e1", "return_item_desc": "Blue Hoodie"},
		{"entry_id": "e2", "return_item_desc": "Red Hoodie"},
	}

	// Invented row: rejected.
	fake := &fakeClient{replies: []string{`{"entry_id": "e9", "return_item_desc": "Green Hoodie"}`}}
	svc := newTestService(fake)
	got, err := svc.MatchReturnCandidate(context.Background(), "hoodie", candidates)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Known entry_id: the stored candidate comes back, not the model output.
	fake = &fakeClient{replies: []string{`{"entry_id": "e2", "return_item_desc": "Red Hoodie XL"}`}}
	svc = newTestService(fake)
	got, err = svc.MatchReturnCandidate(context.Background(), "hoodie", candidates)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Red Hoodie", got.String("return_item_desc"))
}

func TestMatchReturnCandidate_NullReply(t *testing.T) {
	fake := &fakeClient{replies: []string{"null"}}
	svc := newTestService(fake)

	got, err := svc.MatchReturnCandidate(context.Background(), "hoodie", []model.Row{{"entry_id": "e1"}})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":   `{"a":1}`,
		"```\n{\"a\":1}\n```":       `{"a":1}`,
		"Here you go: {\"a\":1} ok": `{"a":1}`,
		"null":                      "null",
		"":                          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanJSON(in), "input %q", in)
	}
}

func TestPromptSet_Builders(t *testing.T) {
	p := DefaultPrompts()

	classification := p.BuildClassification("a@b.com", "subj", "body text")
	assert.Contains(t, classification, "From: a@b.com")
	assert.Contains(t, classification, "Subject: subj")

	match := p.BuildFallbackMatch("blue hoodie", `[{"entry_id":"e1"}]`)
	assert.Contains(t, match, `"blue hoodie"`)
	assert.Contains(t, match, `"entry_id":"e1"`)

	order := BuildEmail(p.Order, "Your order", "two items")
	assert.Contains(t, order, "Email Subject: Your order")
	assert.Contains(t, order, "two items")
}
