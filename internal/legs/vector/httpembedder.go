package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint for a single
// query string (batch-of-one, per spec.md §4.4). Adapted from
// internal/embedding/client.go's EmbedText request/response shape,
// generalized to satisfy the Embedder port directly rather than returning a
// batch the caller has to unwrap.
type HTTPEmbedder struct {
	BaseURL string
	Path    string
	Model   string
	APIKey  string
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPEmbedder(baseURL, model, apiKey string) *HTTPEmbedder {
	return &HTTPEmbedder{
		BaseURL: baseURL,
		Path:    "/embeddings",
		Model:   model,
		APIKey:  apiKey,
		Client:  http.DefaultClient,
		Timeout: 15 * time.Second,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed satisfies the Leg's Embedder port. On any transport or decode
// failure it returns an error for the leg to record in FusionDebug — never a
// panic, per spec.md §4.4 ("On embedding failure: record error; return empty").
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.Model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, e.BaseURL+e.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("embed request failed: status=%d body=%s", resp.StatusCode, slurp)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embed response had no data")
	}
	return out.Data[0].Embedding, nil
}
