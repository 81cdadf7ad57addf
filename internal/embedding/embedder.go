// Package embedding stores approved (guest question, answer) pairs with
// their vectors and retrieves nearest prior answers for few-shot prompting.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hostops/concierge/internal/config"
	"github.com/hostops/concierge/internal/pkg/httpretry"
)

// Embedder is the vector capability. Implementations must return vectors
// of a fixed dimension and be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ErrNotConfigured is returned when the embedding provider key is missing.
var ErrNotConfigured = errors.New("embedding: provider not configured")

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	httpClient httpretry.HTTPDoer
}

// NewOpenAIEmbedder builds an embedder from config.
func NewOpenAIEmbedder(cfg config.OpenAIConfig) *OpenAIEmbedder {
	base := &http.Client{Timeout: cfg.Timeout()}
	return &OpenAIEmbedder{
		apiKey:     cfg.APIKey,
		model:      cfg.EmbeddingModel,
		baseURL:    cfg.BaseURL,
		dimensions: cfg.EmbeddingDimensions,
		httpClient: httpretry.NewRetryClient(base, 2),
	}
}

type embedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns the model's vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.apiKey == "" {
		return nil, ErrNotConfigured
	}

	jsonBody, err := json.Marshal(embedRequest{Model: e.model, Input: text, Dimensions: e.dimensions})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("embed: parse response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("embed: api error: %s", out.Error.Message)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embed: empty data")
	}
	return out.Data[0].Embedding, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
