package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore is the production Store over a Postgres database.
//
// Vector similarity uses a server-side function (match_documents_embedding)
// when installed; callers fall back to client-side cosine when the call
// fails. Embeddings are stored as JSONB arrays so the schema does not depend
// on a vector extension being present.
type PostgresStore struct {
	db *sql.DB
}

// OpenDB opens a pooled Postgres connection.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates a store over an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the pipeline tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	document_type TEXT,
	ocr_text TEXT,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, document_id)
);

CREATE TABLE IF NOT EXISTS documents_embedding (
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	document_type TEXT,
	ocr_text TEXT,
	embedding JSONB NOT NULL,
	model TEXT NOT NULL,
	dimensions INT NOT NULL,
	version TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	generated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, document_id)
);

CREATE TABLE IF NOT EXISTS table_extractions (
	id BIGSERIAL PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	table_index INT NOT NULL,
	structure JSONB NOT NULL,
	method TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS line_items (
	id BIGSERIAL PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	row_index INT NOT NULL,
	description TEXT NOT NULL,
	quantity DOUBLE PRECISION,
	unit_price DOUBLE PRECISION,
	total_amount DOUBLE PRECISION NOT NULL,
	vat_rate DOUBLE PRECISION,
	vat_amount DOUBLE PRECISION,
	category TEXT,
	confidence DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS consensus_results (
	id BIGSERIAL PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	final_data JSONB NOT NULL,
	line_items JSONB NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	method TEXT NOT NULL,
	processing_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ml_training_data (
	tenant_id TEXT NOT NULL,
	sample_id TEXT NOT NULL,
	features JSONB NOT NULL,
	decision JSONB NOT NULL,
	performance JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, sample_id)
);

CREATE TABLE IF NOT EXISTS field_provenance (
	id BIGSERIAL PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	field_name TEXT NOT NULL,
	model TEXT NOT NULL,
	model_version TEXT,
	method TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	raw_value TEXT,
	context TEXT,
	processing_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS line_item_provenance (
	id BIGSERIAL PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	row_index INT NOT NULL,
	field_name TEXT NOT NULL,
	model TEXT NOT NULL,
	model_version TEXT,
	method TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	raw_value TEXT,
	context TEXT,
	processing_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS consensus_metadata (
	id BIGSERIAL PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	total_models INT NOT NULL,
	agreement_level DOUBLE PRECISION NOT NULL,
	strategy TEXT NOT NULL,
	final_confidence DOUBLE PRECISION NOT NULL,
	field_models JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rag_query_log (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	query TEXT NOT NULL,
	result_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	similarities JSONB NOT NULL DEFAULT '[]'::jsonb,
	duration_ms BIGINT NOT NULL,
	cache_hit BOOLEAN NOT NULL,
	success BOOLEAN NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_field_provenance_doc ON field_provenance(tenant_id, document_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_line_item_provenance_doc ON line_item_provenance(tenant_id, document_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_consensus_metadata_doc ON consensus_metadata(tenant_id, document_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_rag_query_log_tenant ON rag_query_log(tenant_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, tenantID, documentID string) (*DocumentRow, error) {
	if tenantID == "" || documentID == "" {
		return nil, ErrInvalidKey
	}
	row := s.db.QueryRowContext(ctx, `
SELECT tenant_id, document_id, filename, mime_type, storage_path, COALESCE(document_type,''), COALESCE(ocr_text,''), metadata, created_at
FROM documents
WHERE tenant_id = $1 AND document_id = $2
`, tenantID, documentID)

	var doc DocumentRow
	var metaRaw []byte
	err := row.Scan(&doc.TenantID, &doc.DocumentID, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&doc.DocumentType, &doc.OCRText, &metaRaw, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if err := json.Unmarshal(metaRaw, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal document metadata: %w", err)
	}
	return &doc, nil
}

func (s *PostgresStore) SaveDocument(ctx context.Context, row *DocumentRow) error {
	if row.TenantID == "" || row.DocumentID == "" {
		return ErrInvalidKey
	}
	metaRaw, err := marshalMap(row.Metadata)
	if err != nil {
		return err
	}
	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (tenant_id, document_id, filename, mime_type, storage_path, document_type, ocr_text, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (tenant_id, document_id) DO UPDATE SET
	filename = EXCLUDED.filename,
	mime_type = EXCLUDED.mime_type,
	storage_path = EXCLUDED.storage_path,
	document_type = EXCLUDED.document_type,
	ocr_text = EXCLUDED.ocr_text,
	metadata = EXCLUDED.metadata
`, row.TenantID, row.DocumentID, row.Filename, row.MimeType, row.StoragePath,
		row.DocumentType, row.OCRText, metaRaw, createdAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertEmbedding(ctx context.Context, row *EmbeddingRow) error {
	if row.TenantID == "" || row.DocumentID == "" {
		return ErrInvalidKey
	}
	embRaw, err := json.Marshal(row.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	metaRaw, err := marshalMap(row.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents_embedding (tenant_id, document_id, filename, document_type, ocr_text, embedding, model, dimensions, version, metadata, generated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (tenant_id, document_id) DO UPDATE SET
	filename = EXCLUDED.filename,
	document_type = EXCLUDED.document_type,
	ocr_text = EXCLUDED.ocr_text,
	embedding = EXCLUDED.embedding,
	model = EXCLUDED.model,
	dimensions = EXCLUDED.dimensions,
	version = EXCLUDED.version,
	metadata = EXCLUDED.metadata,
	generated_at = EXCLUDED.generated_at
`, row.TenantID, row.DocumentID, row.Filename, row.DocumentType, row.OCRText,
		embRaw, row.Model, row.Dimensions, row.Version, metaRaw, row.GeneratedAt)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEmbedding(ctx context.Context, tenantID, documentID string) (*EmbeddingRow, error) {
	if tenantID == "" || documentID == "" {
		return nil, ErrInvalidKey
	}
	row := s.db.QueryRowContext(ctx, `
SELECT tenant_id, document_id, filename, COALESCE(document_type,''), COALESCE(ocr_text,''), embedding, model, dimensions, version, metadata, generated_at
FROM documents_embedding
WHERE tenant_id = $1 AND document_id = $2
`, tenantID, documentID)
	emb, err := scanEmbedding(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return emb, nil
}

func (s *PostgresStore) ListEmbeddings(ctx context.Context, tenantID string) ([]EmbeddingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tenant_id, document_id, filename, COALESCE(document_type,''), COALESCE(ocr_text,''), embedding, model, dimensions, version, metadata, generated_at
FROM documents_embedding
WHERE tenant_id = $1
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *emb)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteEmbedding(ctx context.Context, tenantID, documentID string) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM documents_embedding WHERE tenant_id = $1 AND document_id = $2
`, tenantID, documentID)
	if err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// SimilaritySearch calls the server-side match function. Installations
// without the function return an error; the vector store treats that as
// "RPC unavailable" and computes cosine client-side instead.
func (s *PostgresStore) SimilaritySearch(ctx context.Context, tenantID string, embedding []float32, topK int, threshold float64) ([]SimilarityMatch, error) {
	embRaw, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("marshal query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT document_id, filename, COALESCE(document_type,''), COALESCE(ocr_text,''), metadata, similarity
FROM match_documents_embedding($1, $2::jsonb, $3, $4)
`, tenantID, embRaw, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("similarity rpc: %w", err)
	}
	defer rows.Close()

	var out []SimilarityMatch
	for rows.Next() {
		var m SimilarityMatch
		var metaRaw []byte
		m.Row.TenantID = tenantID
		if err := rows.Scan(&m.Row.DocumentID, &m.Row.Filename, &m.Row.DocumentType,
			&m.Row.OCRText, &metaRaw, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan similarity match: %w", err)
		}
		if err := json.Unmarshal(metaRaw, &m.Row.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal match metadata: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveTableExtraction(ctx context.Context, row *TableExtractionRow) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO table_extractions (tenant_id, document_id, table_index, structure, method, confidence, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, row.TenantID, row.DocumentID, row.TableIndex, row.Structure, row.Method, row.Confidence, timeOrNow(row.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert table extraction: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveLineItems(ctx context.Context, items []LineItemRow) error {
	for _, item := range items {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO line_items (tenant_id, document_id, row_index, description, quantity, unit_price, total_amount, vat_rate, vat_amount, category, confidence, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, item.TenantID, item.DocumentID, item.RowIndex, item.Description, item.Quantity,
			item.UnitPrice, item.TotalAmount, item.VATRate, item.VATAmount, item.Category,
			item.Confidence, timeOrNow(item.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveConsensusResult(ctx context.Context, row *ConsensusResultRow) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO consensus_results (tenant_id, document_id, final_data, line_items, confidence, method, processing_time_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, row.TenantID, row.DocumentID, row.FinalData, row.LineItems, row.Confidence,
		row.Method, row.ProcessingTime.Milliseconds(), timeOrNow(row.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert consensus result: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveTrainingSample(ctx context.Context, row *TrainingSampleRow) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ml_training_data (tenant_id, sample_id, features, decision, performance, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (tenant_id, sample_id) DO NOTHING
`, row.TenantID, row.SampleID, row.Features, row.Decision, row.Performance, timeOrNow(row.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert training sample: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTrainingSamples(ctx context.Context, tenantID string) ([]TrainingSampleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tenant_id, sample_id, features, decision, performance, created_at
FROM ml_training_data
WHERE tenant_id = $1
ORDER BY created_at
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list training samples: %w", err)
	}
	defer rows.Close()

	var out []TrainingSampleRow
	for rows.Next() {
		var r TrainingSampleRow
		if err := rows.Scan(&r.TenantID, &r.SampleID, &r.Features, &r.Decision, &r.Performance, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan training sample: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveFieldProvenance(ctx context.Context, row *FieldProvenanceRow) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO field_provenance (tenant_id, document_id, field_name, model, model_version, method, confidence, raw_value, context, processing_time_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, row.TenantID, row.DocumentID, row.FieldName, row.Model, row.ModelVersion, row.Method,
		row.Confidence, row.RawValue, row.Context, row.ProcessingTime.Milliseconds(), timeOrNow(row.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert field provenance: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveLineItemProvenance(ctx context.Context, row *LineItemProvenanceRow) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO line_item_provenance (tenant_id, document_id, row_index, field_name, model, model_version, method, confidence, raw_value, context, processing_time_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, row.TenantID, row.DocumentID, row.RowIndex, row.FieldName, row.Model, row.ModelVersion,
		row.Method, row.Confidence, row.RawValue, row.Context, row.ProcessingTime.Milliseconds(), timeOrNow(row.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert line item provenance: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveConsensusMetadata(ctx context.Context, row *ConsensusMetadataRow) error {
	fieldModels, err := json.Marshal(row.FieldModels)
	if err != nil {
		return fmt.Errorf("marshal field models: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO consensus_metadata (tenant_id, document_id, total_models, agreement_level, strategy, final_confidence, field_models, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, row.TenantID, row.DocumentID, row.TotalModels, row.AgreementLevel, row.Strategy,
		row.FinalConfidence, fieldModels, timeOrNow(row.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert consensus metadata: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFieldProvenance(ctx context.Context, tenantID, documentID string) ([]FieldProvenanceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tenant_id, document_id, field_name, model, COALESCE(model_version,''), method, confidence, COALESCE(raw_value,''), COALESCE(context,''), processing_time_ms, created_at
FROM field_provenance
WHERE tenant_id = $1 AND document_id = $2
ORDER BY created_at DESC
`, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list field provenance: %w", err)
	}
	defer rows.Close()

	var out []FieldProvenanceRow
	for rows.Next() {
		var r FieldProvenanceRow
		var ms int64
		if err := rows.Scan(&r.TenantID, &r.DocumentID, &r.FieldName, &r.Model, &r.ModelVersion,
			&r.Method, &r.Confidence, &r.RawValue, &r.Context, &ms, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan field provenance: %w", err)
		}
		r.ProcessingTime = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListLineItemProvenance(ctx context.Context, tenantID, documentID string) ([]LineItemProvenanceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tenant_id, document_id, row_index, field_name, model, COALESCE(model_version,''), method, confidence, COALESCE(raw_value,''), COALESCE(context,''), processing_time_ms, created_at
FROM line_item_provenance
WHERE tenant_id = $1 AND document_id = $2
ORDER BY created_at DESC
`, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list line item provenance: %w", err)
	}
	defer rows.Close()

	var out []LineItemProvenanceRow
	for rows.Next() {
		var r LineItemProvenanceRow
		var ms int64
		if err := rows.Scan(&r.TenantID, &r.DocumentID, &r.RowIndex, &r.FieldName, &r.Model, &r.ModelVersion,
			&r.Method, &r.Confidence, &r.RawValue, &r.Context, &ms, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan line item provenance: %w", err)
		}
		r.ProcessingTime = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListConsensusMetadata(ctx context.Context, tenantID, documentID string) ([]ConsensusMetadataRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tenant_id, document_id, total_models, agreement_level, strategy, final_confidence, field_models, created_at
FROM consensus_metadata
WHERE tenant_id = $1 AND document_id = $2
ORDER BY created_at DESC
`, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list consensus metadata: %w", err)
	}
	defer rows.Close()

	var out []ConsensusMetadataRow
	for rows.Next() {
		var r ConsensusMetadataRow
		var fieldModels []byte
		if err := rows.Scan(&r.TenantID, &r.DocumentID, &r.TotalModels, &r.AgreementLevel,
			&r.Strategy, &r.FinalConfidence, &fieldModels, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan consensus metadata: %w", err)
		}
		if err := json.Unmarshal(fieldModels, &r.FieldModels); err != nil {
			return nil, fmt.Errorf("unmarshal field models: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveQueryLog(ctx context.Context, row *QueryLogRow) error {
	resultIDs, err := json.Marshal(row.ResultIDs)
	if err != nil {
		return fmt.Errorf("marshal result ids: %w", err)
	}
	sims, err := json.Marshal(row.Similarities)
	if err != nil {
		return fmt.Errorf("marshal similarities: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO rag_query_log (id, tenant_id, query, result_ids, similarities, duration_ms, cache_hit, success, error_message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, row.ID, row.TenantID, row.Query, resultIDs, sims, row.Duration.Milliseconds(),
		row.CacheHit, row.Success, row.Error, timeOrNow(row.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmbedding(r rowScanner) (*EmbeddingRow, error) {
	var emb EmbeddingRow
	var embRaw, metaRaw []byte
	err := r.Scan(&emb.TenantID, &emb.DocumentID, &emb.Filename, &emb.DocumentType, &emb.OCRText,
		&embRaw, &emb.Model, &emb.Dimensions, &emb.Version, &metaRaw, &emb.GeneratedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(embRaw, &emb.Embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	if err := json.Unmarshal(metaRaw, &emb.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal embedding metadata: %w", err)
	}
	return &emb, nil
}

func marshalMap(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

var _ Store = (*PostgresStore)(nil)
var _ SimilaritySearcher = (*PostgresStore)(nil)
