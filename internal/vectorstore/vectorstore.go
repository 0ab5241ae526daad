// Package vectorstore provides tenant-scoped similarity search over
// stored document embeddings.
//
// Search prefers the backing store's server-side similarity capability
// when it has one; otherwise the tenant's embeddings are pulled and
// cosine similarity is computed client-side.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
)

// ErrEmptyEmbedding is returned for a zero-length query vector.
var ErrEmptyEmbedding = errors.New("empty query embedding")

// SearchResult is one similarity search hit.
type SearchResult struct {
	DocumentID   string                 `json:"document_id"`
	Filename     string                 `json:"filename"`
	DocumentType string                 `json:"document_type"`
	OCRText      string                 `json:"ocr_text,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Similarity   float64                `json:"similarity"`
}

// Store wraps embedding persistence and similarity search.
type Store struct {
	backend store.EmbeddingStore
	logger  *zap.Logger
}

func New(backend store.EmbeddingStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// Upsert stores an embedding under the calling tenant. The row's tenant
// is always taken from the context, never from the caller.
func (s *Store) Upsert(ctx context.Context, row *store.EmbeddingRow) error {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	row.TenantID = info.TenantID
	if err := s.backend.UpsertEmbedding(ctx, row); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Get returns the calling tenant's embedding for a document.
func (s *Store) Get(ctx context.Context, documentID string) (*store.EmbeddingRow, error) {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.backend.GetEmbedding(ctx, info.TenantID, documentID)
}

// Delete removes the calling tenant's embedding for a document.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	return s.backend.DeleteEmbedding(ctx, info.TenantID, documentID)
}

// SimilaritySearch returns the tenant's documents most similar to the
// query embedding, filtered by threshold and sorted descending.
func (s *Store) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, threshold float64) ([]SearchResult, error) {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(queryEmbedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	if searcher, ok := s.backend.(store.SimilaritySearcher); ok {
		matches, err := searcher.SimilaritySearch(ctx, info.TenantID, queryEmbedding, topK, threshold)
		if err == nil {
			return toResults(matches), nil
		}
		s.logger.Warn("server-side similarity search unavailable, computing locally",
			zap.String("tenant_id", info.TenantID),
			zap.Error(err))
	}

	return s.manualSearch(ctx, info.TenantID, queryEmbedding, topK, threshold)
}

// manualSearch downloads the tenant's embeddings and ranks them by
// cosine similarity in-process.
func (s *Store) manualSearch(ctx context.Context, tenantID string, queryEmbedding []float32, topK int, threshold float64) ([]SearchResult, error) {
	rows, err := s.backend.ListEmbeddings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		similarity := cosineSimilarity(queryEmbedding, row.Embedding)
		if similarity < threshold {
			continue
		}
		results = append(results, resultFromRow(row, similarity))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func toResults(matches []store.SimilarityMatch) []SearchResult {
	results := make([]SearchResult, 0, len(matches))
	for _, match := range matches {
		results = append(results, resultFromRow(match.Row, match.Similarity))
	}
	return results
}

func resultFromRow(row store.EmbeddingRow, similarity float64) SearchResult {
	return SearchResult{
		DocumentID:   row.DocumentID,
		Filename:     row.Filename,
		DocumentType: row.DocumentType,
		OCRText:      row.OCRText,
		Metadata:     row.Metadata,
		Similarity:   similarity,
	}
}

// cosineSimilarity returns 0 for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
