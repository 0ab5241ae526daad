// Package store defines the persistent store consumed by the document
// pipeline.
//
// The store stands in for the platform's hosted database layer. It exposes
// row-level access to the logical tables the pipeline owns: documents,
// documents_embedding, table_extractions, line_items, consensus_results,
// ml_training_data, field_provenance, line_item_provenance,
// consensus_metadata and rag_query_log. Two implementations are provided:
// Postgres (production) and an in-memory store (tests, single-binary
// development).
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("row not found")

	// ErrInvalidKey indicates a missing tenant or document identifier.
	ErrInvalidKey = errors.New("invalid row key")
)

// DocumentRow is a stored document's metadata and canonical content.
type DocumentRow struct {
	TenantID     string
	DocumentID   string
	Filename     string
	MimeType     string
	StoragePath  string
	DocumentType string
	OCRText      string
	Metadata     map[string]interface{}
	CreatedAt    time.Time
}

// EmbeddingRow is one (tenant, document) embedding. The pair is a natural
// key: re-embedding supersedes the existing row, it never appends.
type EmbeddingRow struct {
	TenantID     string
	DocumentID   string
	Filename     string
	DocumentType string
	OCRText      string
	Embedding    []float32
	Model        string
	Dimensions   int
	Version      string
	Metadata     map[string]interface{}
	GeneratedAt  time.Time
}

// TableExtractionRow is one extracted table structure, serialized.
type TableExtractionRow struct {
	TenantID   string
	DocumentID string
	TableIndex int
	Structure  []byte
	Method     string
	Confidence float64
	CreatedAt  time.Time
}

// LineItemRow is one persisted financial line item.
type LineItemRow struct {
	TenantID    string
	DocumentID  string
	RowIndex    int
	Description string
	Quantity    float64
	UnitPrice   float64
	TotalAmount float64
	VATRate     float64
	VATAmount   float64
	Category    string
	Confidence  float64
	CreatedAt   time.Time
}

// ConsensusResultRow is one consensus run's merged output.
type ConsensusResultRow struct {
	TenantID       string
	DocumentID     string
	FinalData      []byte
	LineItems      []byte
	Confidence     float64
	Method         string
	ProcessingTime time.Duration
	CreatedAt      time.Time
}

// TrainingSampleRow is one stored classifier training sample.
type TrainingSampleRow struct {
	TenantID    string
	SampleID    string
	Features    []byte
	Decision    []byte
	Performance []byte
	CreatedAt   time.Time
}

// FieldProvenanceRow records which model produced one header field value.
type FieldProvenanceRow struct {
	TenantID       string
	DocumentID     string
	FieldName      string
	Model          string
	ModelVersion   string
	Method         string
	Confidence     float64
	RawValue       string
	Context        string
	ProcessingTime time.Duration
	CreatedAt      time.Time
}

// LineItemProvenanceRow records which model produced one line-item cell.
type LineItemProvenanceRow struct {
	TenantID       string
	DocumentID     string
	RowIndex       int
	FieldName      string
	Model          string
	ModelVersion   string
	Method         string
	Confidence     float64
	RawValue       string
	Context        string
	ProcessingTime time.Duration
	CreatedAt      time.Time
}

// ConsensusMetadataRow records per-document consensus agreement metadata.
type ConsensusMetadataRow struct {
	TenantID        string
	DocumentID      string
	TotalModels     int
	AgreementLevel  float64
	Strategy        string
	FinalConfidence float64
	FieldModels     map[string]string
	CreatedAt       time.Time
}

// QueryLogRow is one audit record of a retrieval query.
type QueryLogRow struct {
	ID           string
	TenantID     string
	Query        string
	ResultIDs    []string
	Similarities []float64
	Duration     time.Duration
	CacheHit     bool
	Success      bool
	Error        string
	CreatedAt    time.Time
}

// SimilarityMatch is one server-side similarity search hit.
type SimilarityMatch struct {
	Row        EmbeddingRow
	Similarity float64
}

// DocumentStore provides access to stored documents.
type DocumentStore interface {
	GetDocument(ctx context.Context, tenantID, documentID string) (*DocumentRow, error)
	SaveDocument(ctx context.Context, row *DocumentRow) error
}

// EmbeddingStore persists document embeddings keyed by (tenant, document).
type EmbeddingStore interface {
	// UpsertEmbedding inserts or replaces the embedding for the row's
	// (tenant, document) key.
	UpsertEmbedding(ctx context.Context, row *EmbeddingRow) error
	GetEmbedding(ctx context.Context, tenantID, documentID string) (*EmbeddingRow, error)
	// ListEmbeddings returns all of a tenant's embeddings. Used by the
	// manual similarity fallback; callers must not assume ordering.
	ListEmbeddings(ctx context.Context, tenantID string) ([]EmbeddingRow, error)
	DeleteEmbedding(ctx context.Context, tenantID, documentID string) error
}

// ExtractionStore persists table extraction output.
type ExtractionStore interface {
	SaveTableExtraction(ctx context.Context, row *TableExtractionRow) error
	SaveLineItems(ctx context.Context, rows []LineItemRow) error
}

// ConsensusStore persists consensus results.
type ConsensusStore interface {
	SaveConsensusResult(ctx context.Context, row *ConsensusResultRow) error
}

// TrainingStore persists classifier training data.
type TrainingStore interface {
	SaveTrainingSample(ctx context.Context, row *TrainingSampleRow) error
	ListTrainingSamples(ctx context.Context, tenantID string) ([]TrainingSampleRow, error)
}

// ProvenanceStore is the append-only provenance log.
type ProvenanceStore interface {
	SaveFieldProvenance(ctx context.Context, row *FieldProvenanceRow) error
	SaveLineItemProvenance(ctx context.Context, row *LineItemProvenanceRow) error
	SaveConsensusMetadata(ctx context.Context, row *ConsensusMetadataRow) error
	// ListFieldProvenance returns field provenance newest-first.
	ListFieldProvenance(ctx context.Context, tenantID, documentID string) ([]FieldProvenanceRow, error)
	// ListLineItemProvenance returns line-item provenance newest-first.
	ListLineItemProvenance(ctx context.Context, tenantID, documentID string) ([]LineItemProvenanceRow, error)
	// ListConsensusMetadata returns consensus metadata newest-first.
	ListConsensusMetadata(ctx context.Context, tenantID, documentID string) ([]ConsensusMetadataRow, error)
}

// AuditStore persists retrieval query logs.
type AuditStore interface {
	SaveQueryLog(ctx context.Context, row *QueryLogRow) error
}

// SimilaritySearcher is an optional store capability: server-side vector
// similarity search. Implementations without it fall back to client-side
// cosine over ListEmbeddings.
type SimilaritySearcher interface {
	SimilaritySearch(ctx context.Context, tenantID string, embedding []float32, topK int, threshold float64) ([]SimilarityMatch, error)
}

// Store aggregates all persistent store capabilities the pipeline uses.
type Store interface {
	DocumentStore
	EmbeddingStore
	ExtractionStore
	ConsensusStore
	TrainingStore
	ProvenanceStore
	AuditStore
}
