package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// openAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type openAIEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     hclog.Logger
}

type openAIEmbedderConfig struct {
	APIKey  string
	BaseURL string // default: https://api.openai.com/v1
	Model   string
	Timeout time.Duration
	Logger  hclog.Logger
}

func newOpenAIEmbedder(config openAIEmbedderConfig) *openAIEmbedder {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	return &openAIEmbedder{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger.Named("openai-embedder"),
	}
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed requests an embedding for a single text. Transient failures are
// retried with exponential backoff.
func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32

	operation := func() error {
		v, err := e.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *openAIEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	reqJSON, err := json.Marshal(openAIEmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	e.logger.Debug("requesting embedding", "model", e.model, "text_length", len(text))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openAIErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			err = fmt.Errorf("embeddings API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		} else {
			err = fmt.Errorf("embeddings API error (%d): %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var embResp openAIEmbeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	if len(embResp.Data) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("no embedding in response"))
	}

	return toFloat32(embResp.Data[0].Embedding), nil
}

// toFloat32 converts a provider float64 vector to the store's float32 form.
func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
