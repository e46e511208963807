package textgen

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"

	"github.com/sells-group/gap-analysis/internal/model"
)

// OpenAIGenerator generates with the OpenAI chat completions API using a
// JSON-schema response format.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIGenerator creates an OpenAI-backed generator. An empty baseURL
// uses the public API.
func NewOpenAIGenerator(apiKey, baseURL, modelName string, maxTokens int, temperature float64) *OpenAIGenerator {
	cc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cc.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cc),
		model:       modelName,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

// Model returns the configured model name.
func (g *OpenAIGenerator) Model() string { return g.model }

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	cr := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: g.temperature,
	}
	if len(req.Schema) > 0 {
		name := req.SchemaName
		if name == "" {
			name = "result"
		}
		cr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: req.Schema,
			},
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, cr)
	if err != nil {
		return nil, eris.Wrap(err, "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: no choices returned")
	}
	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
			Calls:        1,
		},
	}, nil
}
