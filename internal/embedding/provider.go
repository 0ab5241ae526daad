package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrEmbeddingFailed wraps backend failures.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrNotImplemented marks reserved local-model slots. They fail
	// fast so the fallback chain moves on instead of hanging.
	ErrNotImplemented = errors.New("embedding model not implemented")

	// ErrEmptyInput is returned for empty prepared text.
	ErrEmptyInput = errors.New("empty embedding input")
)

// Provider generates an embedding vector for prepared text.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TEIConfig configures the hosted text-embeddings-inference backend.
type TEIConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// TEIProvider calls a hosted TEI-compatible embedding API behind a
// circuit breaker, so a dead backend trips fast instead of timing out
// on every document in a batch.
type TEIProvider struct {
	config  TEIConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]float32]
}

func NewTEIProvider(config TEIConfig) (*TEIProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrEmbeddingFailed)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:    "embedding-" + config.Model,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &TEIProvider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: breaker,
	}, nil
}

func (p *TEIProvider) Name() string { return p.config.Model }

func (p *TEIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return p.breaker.Execute(func() ([]float32, error) {
		return p.embed(ctx, text)
	})
}

func (p *TEIProvider) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: text, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty vector in response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// notImplementedProvider reserves a slot in the fallback order for a
// local model that is not wired up yet.
type notImplementedProvider struct {
	name string
}

func (p notImplementedProvider) Name() string { return p.name }

func (p notImplementedProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, p.name)
}
