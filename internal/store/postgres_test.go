package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_UpsertEmbedding(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents_embedding`).
		WithArgs("org-1", "doc-1", "invoice.pdf", "invoice", "some text",
			sqlmock.AnyArg(), "text-embedding-3-small", 3, "v1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertEmbedding(context.Background(), &EmbeddingRow{
		TenantID:     "org-1",
		DocumentID:   "doc-1",
		Filename:     "invoice.pdf",
		DocumentType: "invoice",
		OCRText:      "some text",
		Embedding:    []float32{0.1, 0.2, 0.3},
		Model:        "text-embedding-3-small",
		Dimensions:   3,
		Version:      "v1",
		GeneratedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEmbedding_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM documents_embedding`).
		WithArgs("org-1", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}))

	_, err := s.GetEmbedding(context.Background(), "org-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_GetEmbedding(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"tenant_id", "document_id", "filename", "document_type", "ocr_text",
		"embedding", "model", "dimensions", "version", "metadata", "generated_at",
	}).AddRow("org-1", "doc-1", "invoice.pdf", "invoice", "text",
		[]byte(`[0.5,0.5]`), "m", 2, "v1", []byte(`{"vendor":"Acme"}`), now)

	mock.ExpectQuery(`SELECT .+ FROM documents_embedding`).
		WithArgs("org-1", "doc-1").
		WillReturnRows(rows)

	emb, err := s.GetEmbedding(context.Background(), "org-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, emb.Embedding)
	assert.Equal(t, "Acme", emb.Metadata["vendor"])
}

func TestPostgresStore_SimilaritySearch_RPCUnavailable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`match_documents_embedding`).
		WillReturnError(assert.AnError)

	_, err := s.SimilaritySearch(context.Background(), "org-1", []float32{1, 0}, 5, 0.3)
	assert.Error(t, err)
}

func TestPostgresStore_SaveLineItems(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO line_items`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO line_items`).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := s.SaveLineItems(context.Background(), []LineItemRow{
		{TenantID: "org-1", DocumentID: "doc-1", Description: "Consulting", TotalAmount: 1500},
		{TenantID: "org-1", DocumentID: "doc-1", RowIndex: 1, Description: "Hosting", TotalAmount: 35},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFieldProvenance_Ordering(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"tenant_id", "document_id", "field_name", "model", "model_version", "method",
		"confidence", "raw_value", "context", "processing_time_ms", "created_at",
	}).
		AddRow("org-1", "doc-1", "vendor", "gemini", "1.5", "vision", 0.9, "Acme", "", int64(120), now).
		AddRow("org-1", "doc-1", "vendor", "openai", "4o", "text", 0.8, "ACME", "", int64(90), now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT .+ FROM field_provenance`).
		WithArgs("org-1", "doc-1").
		WillReturnRows(rows)

	out, err := s.ListFieldProvenance(context.Background(), "org-1", "doc-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "gemini", out[0].Model)
	assert.Equal(t, 120*time.Millisecond, out[0].ProcessingTime)
}
