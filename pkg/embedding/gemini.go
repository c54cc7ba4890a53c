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

// geminiEmbedder calls the Gemini embedContent endpoint.
type geminiEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	logger     hclog.Logger
}

type geminiEmbedderConfig struct {
	APIKey     string
	BaseURL    string // default: https://generativelanguage.googleapis.com/v1beta
	Model      string
	Dimensions int
	Timeout    time.Duration
	Logger     hclog.Logger
}

func newGeminiEmbedder(config geminiEmbedderConfig) *geminiEmbedder {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	return &geminiEmbedder{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		model:      config.Model,
		dimensions: config.Dimensions,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger.Named("gemini-embedder"),
	}
}

type geminiEmbedRequest struct {
	Model                string            `json:"model"`
	Content              geminiEmbedParts  `json:"content"`
	OutputDimensionality int               `json:"outputDimensionality,omitempty"`
}

type geminiEmbedParts struct {
	Parts []geminiTextPart `json:"parts"`
}

type geminiTextPart struct {
	Text string `json:"text"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed requests an embedding for a single text with bounded retries.
func (e *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
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

func (e *geminiEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	reqJSON, err := json.Marshal(geminiEmbedRequest{
		Model: "models/" + e.model,
		Content: geminiEmbedParts{
			Parts: []geminiTextPart{{Text: text}},
		},
		OutputDimensionality: e.dimensions,
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

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
		err := fmt.Errorf("embedContent API error (%d): %s", resp.StatusCode, string(respBody))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var embResp geminiEmbedResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	if len(embResp.Embedding.Values) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("no embedding in response"))
	}

	return toFloat32(embResp.Embedding.Values), nil
}
