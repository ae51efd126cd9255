package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/formfill/internal/safeurl"
)

// DefaultOllamaURL is Ollama's local generate endpoint.
const DefaultOllamaURL = "http://localhost:11434/api/generate"

// maxResponseBody caps what is read from a provider.
const maxResponseBody int64 = 10 << 20

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// NewOllama returns a handler calling a local Ollama server. A nil client
// uses one with a two minute timeout.
func NewOllama(url, model string, client *http.Client) Handler {
	if url == "" {
		url = DefaultOllamaURL
	}
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		body, err := json.Marshal(ollamaRequest{Model: model, Prompt: string(payload), Format: "json"})
		if err != nil {
			return nil, fmt.Errorf("llm/ollama: marshal: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("llm/ollama: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("llm/ollama: do request: %w", err)
		}
		defer resp.Body.Close()

		data, err := safeurl.ReadLimited(resp.Body, maxResponseBody)
		if err != nil {
			return nil, fmt.Errorf("llm/ollama: read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("llm/ollama: status %d: %s", resp.StatusCode, data)
		}
		var out ollamaResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("llm/ollama: decode: %w", err)
		}
		if out.Error != "" {
			return nil, fmt.Errorf("llm/ollama: %s", out.Error)
		}
		return []byte(out.Response), nil
	}
}
