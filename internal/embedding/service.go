// Package embedding turns document content into embedding vectors via a
// chain of providers with a content-addressed cache in front.
package embedding

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/config"
)

// Reserved local-model slot names in the fallback order.
const (
	LocalModelONNX      = "local_onnx_minilm"
	LocalModelFastEmbed = "local_fastembed"
)

// Result is the outcome of one embedding generation.
type Result struct {
	Success    bool      `json:"success"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Cached     bool      `json:"cached"`
	Error      string    `json:"error,omitempty"`
}

// Service resolves embeddings through cache, then providers in a fixed
// preference order: the hosted API first, then the reserved local slots.
type Service struct {
	providers []Provider
	cache     *embeddingCache
	metrics   *Metrics
	logger    *zap.Logger
}

// NewService builds the provider chain from configuration. A nil metrics
// leaves the counters unregistered.
func NewService(cfg config.EmbeddingsConfig, metrics *Metrics, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tei, err := NewTEIProvider(TEIConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}
	svc := newService([]Provider{
		tei,
		notImplementedProvider{name: LocalModelONNX},
		notImplementedProvider{name: LocalModelFastEmbed},
	}, cfg, logger)
	if metrics != nil {
		svc.metrics = metrics
	}
	return svc, nil
}

// newService wires an explicit provider chain. Used directly by tests.
func newService(providers []Provider, cfg config.EmbeddingsConfig, logger *zap.Logger) *Service {
	return &Service{
		providers: providers,
		cache:     newEmbeddingCache(time.Duration(cfg.CacheTTLHours)*time.Hour, cfg.CacheMaxEntries),
		metrics:   NewMetrics(nil),
		logger:    logger,
	}
}

// GenerateEmbedding resolves an embedding for the content: cache first,
// then the preferred provider if named, then the remaining providers in
// order. The first success is cached; if every provider fails the result
// carries success=false rather than an error.
func (s *Service) GenerateEmbedding(ctx context.Context, content Content, preferredModel string) *Result {
	text := PrepareText(content)
	if text == "" {
		return &Result{Success: false, Error: ErrEmptyInput.Error()}
	}
	key := CacheKey(text)

	if entry, ok := s.cache.get(key); ok {
		s.metrics.recordCacheHit()
		return &Result{
			Success:    true,
			Embedding:  entry.embedding,
			Model:      entry.model + " (cached)",
			Dimensions: len(entry.embedding),
			Cached:     true,
		}
	}

	s.metrics.recordCacheMiss()

	var failures []string
	for _, provider := range s.orderedProviders(preferredModel) {
		vector, err := provider.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("embedding provider failed",
				zap.String("model", provider.Name()),
				zap.Error(err))
			s.metrics.recordFailure(provider.Name())
			failures = append(failures, provider.Name()+": "+err.Error())
			continue
		}
		s.metrics.recordGenerated(provider.Name())
		s.cache.put(key, vector, provider.Name())
		return &Result{
			Success:    true,
			Embedding:  vector,
			Model:      provider.Name(),
			Dimensions: len(vector),
		}
	}

	return &Result{
		Success: false,
		Error:   "all embedding models failed: " + strings.Join(failures, "; "),
	}
}

// orderedProviders moves the preferred model to the front of the chain.
func (s *Service) orderedProviders(preferredModel string) []Provider {
	if preferredModel == "" {
		return s.providers
	}
	ordered := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Name() == preferredModel {
			ordered = append(ordered, p)
		}
	}
	if len(ordered) == 0 {
		return s.providers
	}
	for _, p := range s.providers {
		if p.Name() != preferredModel {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// CacheSize reports the live entry count. Exposed for stats reporting.
func (s *Service) CacheSize() int {
	return s.cache.len()
}
