package textgen

import (
	"context"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/pkg/anthropic"
)

// AnthropicGenerator generates with Claude. The system prompt is cached so
// per-page extraction calls reuse it.
type AnthropicGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicGenerator creates a Claude-backed generator.
func NewAnthropicGenerator(client anthropic.Client, modelName string, maxTokens int, temperature float64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicGenerator{client: client, model: modelName, maxTokens: maxTokens, temperature: temperature}
}

// Model returns the configured model name.
func (g *AnthropicGenerator) Model() string { return g.model }

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	temp := g.temperature
	mr := anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   int64(maxTokens),
		Messages:    []anthropic.Message{{Role: "user", Content: schemaInstruction(req)}},
		Temperature: &temp,
	}
	if req.System != "" {
		mr.System = []anthropic.SystemBlock{{Text: req.System, Cached: true}}
	}

	resp, err := g.client.CreateMessage(ctx, mr)
	if err != nil {
		return nil, err
	}
	return &Response{
		Text:  resp.Text(),
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
			Calls:            1,
		},
	}, nil
}
