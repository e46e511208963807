package textgen_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/resilience"
	"github.com/sells-group/gap-analysis/internal/textgen"
	"github.com/sells-group/gap-analysis/internal/textgen/mocks"
	"github.com/sells-group/gap-analysis/pkg/anthropic"
)

type payload struct {
	Items []string `json:"items"`
}

func reply(text string) *textgen.Response {
	return &textgen.Response{Text: text, Model: "m1", Usage: model.TokenUsage{InputTokens: 10, OutputTokens: 5, Calls: 1}}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapped", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"no object", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textgen.CleanJSON(tt.in))
		})
	}
}

func TestGenerateInto_FirstTry(t *testing.T) {
	g := mocks.NewMockGenerator(t)
	g.On("Model").Return("m1")
	g.On("Generate", mock.Anything, mock.Anything).Return(reply("```json\n{\"items\":[\"a\"]}\n```"), nil).Once()

	var out payload
	res, err := textgen.GenerateInto(context.Background(), g, textgen.Request{SchemaName: "items"}, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Items)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int64(10), res.Usage.InputTokens)
}

func TestGenerateInto_RetriesParseFailureOnce(t *testing.T) {
	g := mocks.NewMockGenerator(t)
	g.On("Model").Return("m1")
	g.On("Generate", mock.Anything, mock.Anything).Return(reply("not json"), nil).Once()
	g.On("Generate", mock.Anything, mock.Anything).Return(reply(`{"items":["b"]}`), nil).Once()

	var out payload
	res, err := textgen.GenerateInto(context.Background(), g, textgen.Request{SchemaName: "items"}, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, out.Items)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, res.Usage.Calls)
}

func TestGenerateInto_GivesUpAfterSecondFailure(t *testing.T) {
	g := mocks.NewMockGenerator(t)
	g.On("Model").Return("m1")
	g.On("Generate", mock.Anything, mock.Anything).Return(reply("still not json"), nil).Twice()

	var out payload
	res, err := textgen.GenerateInto(context.Background(), g, textgen.Request{SchemaName: "items"}, &out, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrExtractionParse))
	assert.Equal(t, 2, res.Attempts)
}

func TestGenerateInto_ValidationFailureRetried(t *testing.T) {
	g := mocks.NewMockGenerator(t)
	g.On("Model").Return("m1")
	g.On("Generate", mock.Anything, mock.Anything).Return(reply(`{"items":[]}`), nil).Once()
	g.On("Generate", mock.Anything, mock.Anything).Return(reply(`{"items":["x","y"]}`), nil).Once()

	var out payload
	validate := func() error {
		if len(out.Items) < 2 {
			return eris.New("too few items")
		}
		return nil
	}
	res, err := textgen.GenerateInto(context.Background(), g, textgen.Request{SchemaName: "items"}, &out, validate)
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, 2, res.Attempts)
}

func TestGenerateInto_PermanentErrorNotRetried(t *testing.T) {
	g := mocks.NewMockGenerator(t)
	g.On("Model").Return("m1")
	g.On("Generate", mock.Anything, mock.Anything).Return(nil, eris.New("invalid api key")).Once()

	var out payload
	res, err := textgen.GenerateInto(context.Background(), g, textgen.Request{}, &out, nil)
	require.Error(t, err)
	assert.False(t, eris.Is(err, model.ErrExtractionParse))
	assert.Equal(t, 1, res.Attempts)
}

func TestGenerateInto_TransientErrorRetried(t *testing.T) {
	g := mocks.NewMockGenerator(t)
	g.On("Model").Return("m1")
	g.On("Generate", mock.Anything, mock.Anything).Return(nil, resilience.Transient(eris.New("overloaded"), 529)).Once()
	g.On("Generate", mock.Anything, mock.Anything).Return(reply(`{"items":["ok"]}`), nil).Once()

	var out payload
	res, err := textgen.GenerateInto(context.Background(), g, textgen.Request{}, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
}

type fakeAnthropic struct {
	got anthropic.MessageRequest
}

func (f *fakeAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.got = req
	return &anthropic.MessageResponse{
		Model:   "claude-test",
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"items":[]}`}},
		Usage:   anthropic.TokenUsage{InputTokens: 50, OutputTokens: 7, CacheReadInputTokens: 900},
	}, nil
}

func TestAnthropicGenerator(t *testing.T) {
	fa := &fakeAnthropic{}
	g := textgen.NewAnthropicGenerator(fa, "claude-test", 0, 0.1)
	assert.Equal(t, "claude-test", g.Model())

	resp, err := g.Generate(context.Background(), textgen.Request{
		System: "You extract facts.",
		Prompt: "Page text",
		Schema: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, resp.Text)
	assert.Equal(t, int64(900), resp.Usage.CacheReadTokens)
	assert.Equal(t, 1, resp.Usage.Calls)

	require.Len(t, fa.got.System, 1)
	assert.True(t, fa.got.System[0].Cached)
	assert.Equal(t, int64(4096), fa.got.MaxTokens)
	assert.Contains(t, fa.got.Messages[0].Content, "Page text")
	assert.Contains(t, fa.got.Messages[0].Content, `{"type":"object"}`)
}

func TestOpenAIGenerator(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer oa-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"{\"items\":[\"z\"]}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":30,"completion_tokens":4,"total_tokens":34}}`))
	}))
	defer srv.Close()

	g := textgen.NewOpenAIGenerator("oa-key", srv.URL, "", 512, 0)
	assert.Equal(t, "gpt-4o-mini", g.Model())

	resp, err := g.Generate(context.Background(), textgen.Request{
		System:     "sys",
		Prompt:     "go",
		Schema:     json.RawMessage(`{"type":"object","properties":{"items":{"type":"array"}}}`),
		SchemaName: "items",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"items":["z"]}`, resp.Text)
	assert.Equal(t, int64(30), resp.Usage.InputTokens)

	rf, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", rf["type"])
	msgs := body["messages"].([]any)
	assert.Len(t, msgs, 2)
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()

	g := textgen.NewOpenAIGenerator("k", srv.URL, "gpt-4o", 0, 0)
	_, err := g.Generate(context.Background(), textgen.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestGeminiGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"items\":[\"g\"]}"}]}}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":3}}`))
	}))
	defer srv.Close()

	g, err := textgen.NewGeminiGenerator(context.Background(), "gm-key", srv.URL, "", 0.2)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", g.Model())

	resp, err := g.Generate(context.Background(), textgen.Request{System: "sys", Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, `{"items":["g"]}`, resp.Text)
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
	assert.Equal(t, int64(3), resp.Usage.OutputTokens)
}
