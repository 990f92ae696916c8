package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tyemill/snowline-agent/internal/httpkit"
)

// OllamaClient is a client for the Ollama generate API.
type OllamaClient struct {
	baseURL    string
	model      string
	options    *OllamaOptions
	httpClient *http.Client
}

// OllamaOptions are model sampling parameters passed through to Ollama.
type OllamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// NewOllamaClient creates a new Ollama client. Options may be nil, in which
// case Ollama's own model defaults apply.
func NewOllamaClient(baseURL, model string, options *OllamaOptions) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		options: options,
		// Local models on modest hardware can take minutes per turn.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(5 * time.Minute)),
	}
}

// generateRequest is the request format for the Ollama /api/generate endpoint.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *OllamaOptions `json:"options,omitempty"`
}

// generateChunk is one NDJSON line of a /api/generate response. When done is
// true the chunk also carries usage stats, which we ignore.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a flat prompt to Ollama and returns the complete response.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateStream(ctx, prompt, nil)
}

// GenerateStream sends a flat prompt to Ollama, streaming tokens to callback.
func (c *OllamaClient) GenerateStream(ctx context.Context, prompt string, callback StreamCallback) (string, error) {
	stream := callback != nil

	req := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  stream,
		Options: c.options,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 1024))
	}

	if !stream {
		// Non-streaming: single JSON response
		var chunk generateChunk
		if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		return chunk.Response, nil
	}

	// Streaming: read newline-delimited JSON
	var text strings.Builder
	decoder := json.NewDecoder(resp.Body)

	for {
		var chunk generateChunk
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("decode stream chunk: %w", err)
		}

		if chunk.Response != "" {
			text.WriteString(chunk.Response)
			callback(chunk.Response)
		}

		if chunk.Done {
			break
		}
	}

	return text.String(), nil
}

// Ping checks if Ollama is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}

	return nil
}

// ListModels returns the names of models available on the Ollama server.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}
