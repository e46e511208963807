package textgen

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/gap-analysis/internal/model"
)

// GeminiGenerator generates with the Gemini API in JSON output mode.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiGenerator creates a Gemini-backed generator. baseURL is only set
// in tests.
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL, modelName string, temperature float64) (*GeminiGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GeminiGenerator{client: client, model: modelName, temperature: float32(temperature)}, nil
}

// Model returns the configured model name.
func (g *GeminiGenerator) Model() string { return g.model }

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	temp := g.temperature
	gc := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temp,
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(schemaInstruction(req), genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	out := &Response{Text: resp.Text(), Model: g.model, Usage: model.TokenUsage{Calls: 1}}
	if resp.UsageMetadata != nil {
		out.Usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.Usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
