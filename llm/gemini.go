package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

var errEmptyReply = errors.New("llm: empty reply")

// NewGemini returns a handler calling the Gemini API with a JSON response
// type. An empty apiKey lets the SDK read GEMINI_API_KEY itself.
func NewGemini(ctx context.Context, apiKey, model string) (Handler, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm/gemini: client: %w", err)
	}
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		resp, err := cli.Models.GenerateContent(ctx, model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: string(payload)}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			return nil, fmt.Errorf("llm/gemini: generate: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
			len(resp.Candidates[0].Content.Parts) == 0 {
			return nil, errEmptyReply
		}
		return []byte(resp.Candidates[0].Content.Parts[0].Text), nil
	}, nil
}
