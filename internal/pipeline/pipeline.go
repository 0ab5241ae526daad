// Package pipeline embeds documents end to end: load the stored
// document, generate an embedding and persist it to the vector store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/contaspt/docpipe/internal/embedding"
	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
	"github.com/contaspt/docpipe/internal/vectorstore"
)

// ErrAlreadyProcessing marks a concurrent attempt on the same document.
var ErrAlreadyProcessing = errors.New("document already being processed")

// Embedder generates embeddings for document content.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, content embedding.Content, preferredModel string) *embedding.Result
}

// Options tune one processing request.
type Options struct {
	// ForceRegenerate re-embeds even when an embedding already exists.
	ForceRegenerate bool

	// PreferredModel overrides the provider order for this document.
	PreferredModel string

	// Version is the idempotency tag recorded on the embedding row.
	Version string
}

// Result is the outcome of processing one document.
type Result struct {
	Success        bool          `json:"success"`
	EmbeddingID    string        `json:"embedding_id,omitempty"`
	Model          string        `json:"model,omitempty"`
	Dimensions     int           `json:"dimensions,omitempty"`
	WasCached      bool          `json:"was_cached"`
	ProcessingTime time.Duration `json:"processing_time"`
	Error          string        `json:"error,omitempty"`
}

// Pipeline coordinates document embedding. A per-process in-flight set
// rejects concurrent work on the same (tenant, document) pair.
type Pipeline struct {
	docs     store.DocumentStore
	vectors  *vectorstore.Store
	embedder Embedder
	logger   *zap.Logger

	// limiter paces batch processing between chunks.
	limiter   *rate.Limiter
	chunkSize int

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(docs store.DocumentStore, vectors *vectorstore.Store, embedder Embedder, chunkSize int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chunkSize <= 0 {
		chunkSize = 5
	}
	return &Pipeline{
		docs:      docs,
		vectors:   vectors,
		embedder:  embedder,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(200*time.Millisecond), chunkSize),
		chunkSize: chunkSize,
		inflight:  make(map[string]struct{}),
	}
}

// ProcessDocument embeds one stored document. An existing embedding
// short-circuits unless ForceRegenerate is set.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID string, opts Options) *Result {
	start := time.Now()

	info, err := tenant.FromContext(ctx)
	if err != nil {
		return failure(start, err.Error())
	}

	key := info.TenantID + "/" + documentID
	if !p.claim(key) {
		return failure(start, ErrAlreadyProcessing.Error())
	}
	defer p.release(key)

	if !opts.ForceRegenerate {
		if existing, err := p.vectors.Get(ctx, documentID); err == nil {
			return &Result{
				Success:        true,
				EmbeddingID:    documentID,
				Model:          existing.Model,
				Dimensions:     existing.Dimensions,
				WasCached:      true,
				ProcessingTime: time.Since(start),
			}
		}
	}

	doc, err := p.docs.GetDocument(ctx, info.TenantID, documentID)
	if err != nil {
		return failure(start, fmt.Sprintf("load document: %v", err))
	}

	generated := p.embedder.GenerateEmbedding(ctx, embedding.Content{
		Title:        doc.Filename,
		DocumentType: doc.DocumentType,
		OCRText:      doc.OCRText,
		Metadata:     doc.Metadata,
	}, opts.PreferredModel)
	if !generated.Success {
		return failure(start, generated.Error)
	}

	row := &store.EmbeddingRow{
		DocumentID:   documentID,
		Filename:     doc.Filename,
		DocumentType: doc.DocumentType,
		OCRText:      doc.OCRText,
		Embedding:    generated.Embedding,
		Model:        generated.Model,
		Dimensions:   generated.Dimensions,
		Version:      opts.Version,
		Metadata:     doc.Metadata,
		GeneratedAt:  time.Now().UTC(),
	}
	if err := p.vectors.Upsert(ctx, row); err != nil {
		return failure(start, fmt.Sprintf("store embedding: %v", err))
	}

	p.logger.Info("document embedded",
		zap.String("tenant_id", info.TenantID),
		zap.String("document_id", documentID),
		zap.String("model", generated.Model),
		zap.Bool("cached", generated.Cached))
	return &Result{
		Success:        true,
		EmbeddingID:    documentID,
		Model:          generated.Model,
		Dimensions:     generated.Dimensions,
		WasCached:      generated.Cached,
		ProcessingTime: time.Since(start),
	}
}

// ProcessBatch embeds documents sequentially in chunks, pacing between
// chunks so a large backlog cannot saturate the embedding backend.
func (p *Pipeline) ProcessBatch(ctx context.Context, documentIDs []string, opts Options) []*Result {
	results := make([]*Result, 0, len(documentIDs))
	for i := 0; i < len(documentIDs); i += p.chunkSize {
		end := i + p.chunkSize
		if end > len(documentIDs) {
			end = len(documentIDs)
		}
		if i > 0 {
			if err := p.limiter.Wait(ctx); err != nil {
				for range documentIDs[i:] {
					results = append(results, failure(time.Now(), err.Error()))
				}
				return results
			}
		}
		for _, id := range documentIDs[i:end] {
			results = append(results, p.ProcessDocument(ctx, id, opts))
		}
	}
	return results
}

func (p *Pipeline) claim(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[key]; busy {
		return false
	}
	p.inflight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, key)
}

func failure(start time.Time, msg string) *Result {
	return &Result{Success: false, Error: msg, ProcessingTime: time.Since(start)}
}
