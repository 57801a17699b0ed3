package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPCrossEncoder calls a local cross-encoder inference server (e.g. a
// text-embeddings-inference /rerank endpoint) over HTTP, satisfying
// CrossEncoder for both local and learning modes. Grounded on the same
// request/response idiom as internal/legs/vector.HTTPEmbedder — one JSON
// POST, one JSON array response — since no cross-encoder SDK appears
// anywhere in the example pack.
type HTTPCrossEncoder struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPCrossEncoder(endpoint string) *HTTPCrossEncoder {
	return &HTTPCrossEncoder{Endpoint: endpoint, Client: http.DefaultClient}
}

type crossEncodeRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type crossEncodeResponse struct {
	Scores []float64 `json:"scores"`
}

func (e *HTTPCrossEncoder) Score(ctx context.Context, query string, contents []string) ([]float64, error) {
	body, err := json.Marshal(crossEncodeRequest{Query: query, Texts: contents})
	if err != nil {
		return nil, fmt.Errorf("encode cross-encoder request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build cross-encoder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cross-encoder request failed: status=%d", resp.StatusCode)
	}

	var out crossEncodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode cross-encoder response: %w", err)
	}
	return out.Scores, nil
}

// CohereCloudReranker implements CloudReranker against Cohere's rerank API,
// per spec.md §4.8's "provider API (e.g. Cohere rerank)" example.
type CohereCloudReranker struct {
	Endpoint string
	APIKey   string
	Model    string
	Client   *http.Client
}

func NewCohereCloudReranker(endpoint, apiKey, model string) *CohereCloudReranker {
	return &CohereCloudReranker{Endpoint: endpoint, APIKey: apiKey, Model: model, Client: http.DefaultClient}
}

type cohereRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type cohereRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	ID string `json:"id"`
}

func (c *CohereCloudReranker) Rerank(ctx context.Context, query string, contents []string) ([]float64, string, error) {
	body, err := json.Marshal(cohereRerankRequest{Model: c.Model, Query: query, Documents: contents})
	if err != nil {
		return nil, "", fmt.Errorf("encode cohere rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("build cohere rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("cohere rerank request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("cohere rerank request failed: status=%d", resp.StatusCode)
	}

	var out cohereRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, "", fmt.Errorf("decode cohere rerank response: %w", err)
	}
	scores := make([]float64, len(contents))
	for _, r := range out.Results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		}
	}
	return scores, out.ID, nil
}
