// Package rag answers semantic queries over stored document embeddings.
//
// Queries are cached per tenant, embedded as pseudo-documents, matched
// against the vector store, and always audited, whether they hit the
// cache or fail outright.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/audit"
	"github.com/contaspt/docpipe/internal/config"
	"github.com/contaspt/docpipe/internal/embedding"
	"github.com/contaspt/docpipe/internal/tenant"
	"github.com/contaspt/docpipe/internal/vectorstore"
)

// Embedder generates the query embedding.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, content embedding.Content, preferredModel string) *embedding.Result
}

// Query is one retrieval request.
type Query struct {
	Query               string  `json:"query"`
	TopK                int     `json:"top_k,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	IncludeMetadata     bool    `json:"include_metadata"`
	IncludeContent      bool    `json:"include_content"`
}

// Result is one retrieved document. HighlightedMatch always carries the
// highlighted snippet; Content holds the full document text only when
// the query asked for it.
type Result struct {
	DocumentID       string                 `json:"document_id"`
	Filename         string                 `json:"filename"`
	DocumentType     string                 `json:"document_type"`
	Similarity       float64                `json:"similarity"`
	HighlightedMatch string                 `json:"highlighted_match"`
	Content          string                 `json:"content,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Response is the answer to one query. Model names the embedding model
// that served the query vector, with the "(cached)" suffix when the
// embedding came from the cache.
type Response struct {
	Success        bool          `json:"success"`
	Query          string        `json:"query"`
	Model          string        `json:"model,omitempty"`
	Results        []Result      `json:"results"`
	TotalResults   int           `json:"total_results"`
	CacheHit       bool          `json:"cache_hit"`
	ProcessingTime time.Duration `json:"processing_time"`
	Error          string        `json:"error,omitempty"`
}

// Service runs retrieval queries.
type Service struct {
	cfg      config.RAGConfig
	embedder Embedder
	vectors  *vectorstore.Store
	audit    *audit.Logger
	cache    *queryCache
	metrics  *Metrics
	logger   *zap.Logger
}

// NewService wires a retrieval service. A nil metrics leaves the
// counters unregistered.
func NewService(cfg config.RAGConfig, embedder Embedder, vectors *vectorstore.Store, auditLog *audit.Logger, metrics *Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		cfg:      cfg,
		embedder: embedder,
		vectors:  vectors,
		audit:    auditLog,
		cache:    newQueryCache(time.Duration(cfg.CacheTTLMinutes)*time.Minute, cfg.CacheMaxEntries),
		metrics:  metrics,
		logger:   logger,
	}
}

// Query answers a retrieval request for the calling tenant. Failures
// come back in the response, and every request is audited either way.
func (s *Service) Query(ctx context.Context, q Query) *Response {
	start := time.Now()

	info, err := tenant.FromContext(ctx)
	if err != nil {
		return s.finish(ctx, start, &Response{Query: q.Query, Error: err.Error()})
	}

	if q.TopK <= 0 {
		q.TopK = s.cfg.DefaultTopK
	}
	if q.SimilarityThreshold <= 0 {
		q.SimilarityThreshold = s.cfg.DefaultSimilarityThreshold
	}

	key := cacheKey(info.TenantID, q)
	if cached, ok := s.cache.get(key); ok {
		response := cached
		response.CacheHit = true
		response.ProcessingTime = time.Since(start)
		return s.finish(ctx, start, &response)
	}

	embedded := s.embedder.GenerateEmbedding(ctx, embedding.Content{OCRText: q.Query}, "")
	if !embedded.Success {
		return s.finish(ctx, start, &Response{
			Query: q.Query,
			Error: "embed query: " + embedded.Error,
		})
	}

	matches, err := s.vectors.SimilaritySearch(ctx, embedded.Embedding, q.TopK, q.SimilarityThreshold)
	if err != nil {
		return s.finish(ctx, start, &Response{
			Query: q.Query,
			Error: fmt.Sprintf("similarity search: %v", err),
		})
	}

	response := &Response{
		Success:      true,
		Query:        q.Query,
		Model:        embedded.Model,
		Results:      make([]Result, 0, len(matches)),
		TotalResults: len(matches),
	}
	for _, match := range matches {
		result := Result{
			DocumentID:       match.DocumentID,
			Filename:         match.Filename,
			DocumentType:     match.DocumentType,
			Similarity:       match.Similarity,
			HighlightedMatch: truncateOnWordBoundary(highlightMatches(match.OCRText, q.Query), maxSnippetChars),
		}
		if q.IncludeContent {
			result.Content = match.OCRText
		}
		if q.IncludeMetadata {
			result.Metadata = match.Metadata
		}
		response.Results = append(response.Results, result)
	}

	s.cache.put(key, *response)
	response.ProcessingTime = time.Since(start)
	return s.finish(ctx, start, response)
}

// finish records metrics, audits the query and stamps timing on the
// response.
func (s *Service) finish(ctx context.Context, start time.Time, response *Response) *Response {
	if response.ProcessingTime == 0 {
		response.ProcessingTime = time.Since(start)
	}

	outcome := "error"
	switch {
	case response.Success && response.CacheHit:
		outcome = "cache_hit"
	case response.Success:
		outcome = "success"
	}
	s.metrics.recordQuery(outcome, response.ProcessingTime.Seconds())

	if s.audit != nil {
		ids := make([]string, 0, len(response.Results))
		similarities := make([]float64, 0, len(response.Results))
		for _, result := range response.Results {
			ids = append(ids, result.DocumentID)
			similarities = append(similarities, result.Similarity)
		}
		s.audit.LogQuery(ctx, audit.Entry{
			Query:        response.Query,
			ResultIDs:    ids,
			Similarities: similarities,
			Duration:     response.ProcessingTime,
			CacheHit:     response.CacheHit,
			Success:      response.Success,
			Error:        response.Error,
		})
	}
	return response
}

// cacheKey hashes everything that affects the result set.
func cacheKey(tenantID string, q Query) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%g|%t|%t",
		tenantID, q.Query, q.TopK, q.SimilarityThreshold, q.IncludeMetadata, q.IncludeContent)))
	return hex.EncodeToString(sum[:])
}
