package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/audit"
	"github.com/contaspt/docpipe/internal/classifier"
	"github.com/contaspt/docpipe/internal/config"
	"github.com/contaspt/docpipe/internal/consensus"
	"github.com/contaspt/docpipe/internal/docrouter"
	"github.com/contaspt/docpipe/internal/embedding"
	"github.com/contaspt/docpipe/internal/provenance"
	"github.com/contaspt/docpipe/internal/rag"
	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tableparse"
	"github.com/contaspt/docpipe/internal/tenant"
	"github.com/contaspt/docpipe/internal/vectorstore"
)

type stubEmbedder struct{}

func (stubEmbedder) GenerateEmbedding(context.Context, embedding.Content, string) *embedding.Result {
	return &embedding.Result{Success: true, Embedding: []float32{1, 0}, Model: "stub", Dimensions: 2}
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()

	backend := store.NewMemoryStore()

	ctx := tenant.NewContext(context.Background(), &tenant.Info{TenantID: "tenant-1"})
	require.NoError(t, backend.UpsertEmbedding(ctx, &store.EmbeddingRow{
		TenantID:   "tenant-1",
		DocumentID: "doc-1",
		Filename:   "fatura-001.pdf",
		OCRText:    "Fatura de consultoria",
		Embedding:  []float32{1, 0},
	}))

	ragSvc := rag.NewService(
		config.RAGConfig{CacheTTLMinutes: 30, CacheMaxEntries: 100, DefaultTopK: 5, DefaultSimilarityThreshold: 0.3},
		stubEmbedder{},
		vectorstore.New(backend, nil),
		audit.NewLogger(backend, nil),
		nil,
		nil,
	)

	parser := tableparse.NewParser(nil, nil, backend, nil)
	router := docrouter.NewRouter(
		classifier.New(nil),
		parser,
		parser,
		consensus.NewEngine(backend, backend, nil),
		nil,
	)

	srv, err := NewServer(ragSvc, router, provenance.NewManager(backend, nil), nil, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv, backend
}

func doRequest(srv *Server, method, path, tenantID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tenantID != "" {
		req.Header.Set(TenantHeader, tenantID)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQueryRequiresTenantHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/v1/query", "", `{"query":"consultoria"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryReturnsResults(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/v1/query", "tenant-1", `{"query":"consultoria"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var response rag.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Success)
	require.Equal(t, 1, response.TotalResults)
	assert.Equal(t, "doc-1", response.Results[0].DocumentID)
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/v1/query", "tenant-1", `{"query":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryTenantIsolation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/v1/query", "tenant-2", `{"query":"consultoria"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var response rag.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, 0, response.TotalResults)
}

func TestRouteProcessesDocument(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"document_id":"doc-route","filename":"nota.txt","content":"Fatura FT 2026/001\nTotal: 123.00 EUR"}`
	rec := doRequest(srv, http.MethodPost, "/api/v1/route", "tenant-1", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var result docrouter.RoutingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "doc-route", result.DocumentID)
	assert.NotEmpty(t, result.Pipeline.Name)
}

func TestRouteRequiresContent(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/v1/route", "tenant-1", `{"document_id":"doc-x","content":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProvenanceEmptyTrail(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/v1/documents/doc-1/provenance", "tenant-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var trail provenance.DocumentProvenance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	assert.Empty(t, trail.Fields)
}

func TestIndexerEndpointsUnavailableWithoutIndexer(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusServiceUnavailable,
		doRequest(srv, http.MethodPost, "/api/v1/indexer/scan", "tenant-1", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		doRequest(srv, http.MethodGet, "/api/v1/indexer/stats", "tenant-1", "").Code)
}

func TestQueryIsAudited(t *testing.T) {
	srv, backend := newTestServer(t)

	doRequest(srv, http.MethodPost, "/api/v1/query", "tenant-1", `{"query":"consultoria"}`)

	logs := backend.QueryLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "tenant-1", logs[0].TenantID)
	assert.True(t, logs[0].Success)
}
