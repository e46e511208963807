// Package textgen provides schema-constrained text generation behind a
// single interface, with Anthropic, OpenAI and Gemini backends.
package textgen

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/resilience"
)

// Request is one structured generation call.
type Request struct {
	// System carries the stable instructions; backends that support prompt
	// caching cache it.
	System string
	Prompt string
	// Schema is the JSON schema the output must satisfy.
	Schema     json.RawMessage
	SchemaName string
	MaxTokens  int
}

// Response is the raw output of a generation call.
type Response struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// Result reports what a structured call cost and how many tries it took.
type Result struct {
	Model    string
	Usage    model.TokenUsage
	Attempts int
}

// GenerateInto calls g and decodes the JSON output into out. A transient
// failure or unparseable output is retried once; a second failure is
// returned wrapped in model.ErrExtractionParse or as the transport error.
// validate, when non-nil, runs after decoding and its error counts as a
// parse failure.
func GenerateInto(ctx context.Context, g Generator, req Request, out any, validate func() error) (Result, error) {
	res := Result{Model: g.Model()}
	policy := resilience.Once(func(err error) bool {
		return eris.Is(err, model.ErrExtractionParse) || resilience.IsTransient(err)
	})
	policy.OnRetry = resilience.LogRetries("textgen", req.SchemaName)

	err := resilience.Retry(ctx, policy, func(ctx context.Context) error {
		res.Attempts++
		resp, err := g.Generate(ctx, req)
		if err != nil {
			return err
		}
		res.Usage.Add(resp.Usage)
		if resp.Model != "" {
			res.Model = resp.Model
		}

		raw := CleanJSON(resp.Text)
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			zap.L().Debug("textgen: unparseable output",
				zap.String("schema", req.SchemaName),
				zap.Int("attempt", res.Attempts),
				zap.Int("len", len(resp.Text)),
			)
			return eris.Wrapf(model.ErrExtractionParse, "textgen: decode %s: %v", req.SchemaName, err)
		}
		if validate != nil {
			if err := validate(); err != nil {
				return eris.Wrapf(model.ErrExtractionParse, "textgen: validate %s: %v", req.SchemaName, err)
			}
		}
		return nil
	})
	return res, err
}

// CleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// schemaInstruction is appended to prompts for backends without native
// schema enforcement.
func schemaInstruction(req Request) string {
	if len(req.Schema) == 0 {
		return req.Prompt
	}
	return req.Prompt + "\n\nRespond with a single JSON object that validates against this JSON schema, and nothing else:\n" + string(req.Schema)
}
