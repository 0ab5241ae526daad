package rag

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaspt/docpipe/internal/audit"
	"github.com/contaspt/docpipe/internal/config"
	"github.com/contaspt/docpipe/internal/embedding"
	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
	"github.com/contaspt/docpipe/internal/vectorstore"
)

type fakeEmbedder struct {
	calls  atomic.Int64
	vector []float32
	fail   bool
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, content embedding.Content, _ string) *embedding.Result {
	f.calls.Add(1)
	if f.fail {
		return &embedding.Result{Error: "all embedding models failed: boom"}
	}
	return &embedding.Result{
		Success:    true,
		Embedding:  f.vector,
		Model:      "test-model",
		Dimensions: len(f.vector),
	}
}

func testRAGConfig() config.RAGConfig {
	return config.RAGConfig{
		CacheTTLMinutes:            30,
		CacheMaxEntries:            1000,
		DefaultTopK:                5,
		DefaultSimilarityThreshold: 0.3,
	}
}

func newTestService(t *testing.T) (*Service, *fakeEmbedder, *store.MemoryStore, context.Context) {
	t.Helper()

	backend := store.NewMemoryStore()
	ctx := tenant.NewContext(context.Background(), &tenant.Info{TenantID: "tenant-1"})

	rows := []store.EmbeddingRow{
		{
			DocumentID:   "doc-close",
			Filename:     "fatura-2026-001.pdf",
			DocumentType: "invoice",
			OCRText:      "Fatura de consultoria para servicos de contabilidade",
			Embedding:    []float32{1, 0},
			Metadata:     map[string]interface{}{"vendor": "Acme Lda"},
		},
		{
			DocumentID:   "doc-mid",
			Filename:     "recibo-044.pdf",
			DocumentType: "receipt",
			OCRText:      "Recibo de pagamento",
			Embedding:    []float32{1, 1},
		},
	}
	for i := range rows {
		rows[i].TenantID = "tenant-1"
		require.NoError(t, backend.UpsertEmbedding(ctx, &rows[i]))
	}

	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	svc := NewService(
		testRAGConfig(),
		embedder,
		vectorstore.New(backend, nil),
		audit.NewLogger(backend, nil),
		nil,
		nil,
	)
	return svc, embedder, backend, ctx
}

func TestQueryReturnsRankedResults(t *testing.T) {
	svc, embedder, _, ctx := newTestService(t)

	response := svc.Query(ctx, Query{Query: "consultoria", IncludeMetadata: true})

	require.True(t, response.Success, response.Error)
	require.Equal(t, 2, response.TotalResults)
	assert.Equal(t, "doc-close", response.Results[0].DocumentID)
	assert.InDelta(t, 1.0, response.Results[0].Similarity, 1e-6)
	assert.Equal(t, "doc-mid", response.Results[1].DocumentID)
	assert.InDelta(t, 0.7071, response.Results[1].Similarity, 1e-3)
	assert.Equal(t, map[string]interface{}{"vendor": "Acme Lda"}, response.Results[0].Metadata)
	assert.Empty(t, response.Results[0].Content)
	assert.False(t, response.CacheHit)
	assert.Equal(t, int64(1), embedder.calls.Load())
}

func TestQueryAlwaysHighlightsMatches(t *testing.T) {
	svc, _, _, ctx := newTestService(t)

	response := svc.Query(ctx, Query{Query: "fatura consultoria"})

	require.True(t, response.Success, response.Error)
	require.NotEmpty(t, response.Results)
	assert.Equal(t,
		"**Fatura** de **consultoria** para servicos de contabilidade",
		response.Results[0].HighlightedMatch)
	assert.Empty(t, response.Results[0].Content)
}

func TestQueryIncludesFullContentOnRequest(t *testing.T) {
	svc, _, _, ctx := newTestService(t)

	response := svc.Query(ctx, Query{Query: "fatura consultoria", IncludeContent: true})

	require.True(t, response.Success, response.Error)
	require.NotEmpty(t, response.Results)
	assert.Equal(t,
		"Fatura de consultoria para servicos de contabilidade",
		response.Results[0].Content)
	assert.Equal(t,
		"**Fatura** de **consultoria** para servicos de contabilidade",
		response.Results[0].HighlightedMatch)
}

func TestQueryReportsServingModel(t *testing.T) {
	svc, _, _, ctx := newTestService(t)

	first := svc.Query(ctx, Query{Query: "consultoria"})
	require.True(t, first.Success)
	assert.Equal(t, "test-model", first.Model)

	second := svc.Query(ctx, Query{Query: "consultoria"})
	require.True(t, second.CacheHit)
	assert.Equal(t, "test-model", second.Model)
}

func TestQueryCacheHit(t *testing.T) {
	svc, embedder, backend, ctx := newTestService(t)

	first := svc.Query(ctx, Query{Query: "consultoria"})
	require.True(t, first.Success)
	assert.False(t, first.CacheHit)

	second := svc.Query(ctx, Query{Query: "consultoria"})
	require.True(t, second.Success)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.TotalResults, second.TotalResults)
	assert.Equal(t, int64(1), embedder.calls.Load())

	logs := backend.QueryLogs()
	require.Len(t, logs, 2)
	assert.False(t, logs[0].CacheHit)
	assert.True(t, logs[1].CacheHit)
	assert.True(t, logs[1].Success)
	assert.Equal(t, []string{"doc-close", "doc-mid"}, logs[1].ResultIDs)
}

func TestQueryParametersKeyTheCache(t *testing.T) {
	svc, embedder, _, ctx := newTestService(t)

	svc.Query(ctx, Query{Query: "consultoria"})
	svc.Query(ctx, Query{Query: "consultoria", TopK: 1})

	assert.Equal(t, int64(2), embedder.calls.Load())
}

func TestQueryTopKLimitsResults(t *testing.T) {
	svc, _, _, ctx := newTestService(t)

	response := svc.Query(ctx, Query{Query: "consultoria", TopK: 1})

	require.True(t, response.Success)
	require.Equal(t, 1, response.TotalResults)
	assert.Equal(t, "doc-close", response.Results[0].DocumentID)
}

func TestQueryThresholdFiltersResults(t *testing.T) {
	svc, _, _, ctx := newTestService(t)

	response := svc.Query(ctx, Query{Query: "consultoria", SimilarityThreshold: 0.9})

	require.True(t, response.Success)
	require.Equal(t, 1, response.TotalResults)
	assert.Equal(t, "doc-close", response.Results[0].DocumentID)
}

func TestQueryEmbedFailureIsAudited(t *testing.T) {
	svc, embedder, backend, ctx := newTestService(t)
	embedder.fail = true

	response := svc.Query(ctx, Query{Query: "consultoria"})

	assert.False(t, response.Success)
	assert.Contains(t, response.Error, "embed query")

	logs := backend.QueryLogs()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Contains(t, logs[0].Error, "embed query")
	assert.Equal(t, "consultoria", logs[0].Query)
}

func TestQueryMissingTenant(t *testing.T) {
	svc, embedder, _, _ := newTestService(t)

	response := svc.Query(context.Background(), Query{Query: "consultoria"})

	assert.False(t, response.Success)
	assert.Contains(t, response.Error, tenant.ErrMissingTenant.Error())
	assert.Equal(t, int64(0), embedder.calls.Load())
}

func TestQueryCacheExpiry(t *testing.T) {
	svc, embedder, _, ctx := newTestService(t)

	base := time.Now()
	svc.cache.now = func() time.Time { return base }

	svc.Query(ctx, Query{Query: "consultoria"})
	svc.cache.now = func() time.Time { return base.Add(31 * time.Minute) }
	response := svc.Query(ctx, Query{Query: "consultoria"})

	assert.False(t, response.CacheHit)
	assert.Equal(t, int64(2), embedder.calls.Load())
}

func TestHighlightMatches(t *testing.T) {
	got := highlightMatches("Fatura FT 2026/001 da Acme, IVA incluido", "fatura iva de")
	assert.Equal(t, "**Fatura** FT 2026/001 da Acme, **IVA** incluido", got)
}

func TestHighlightShortTokensIgnored(t *testing.T) {
	got := highlightMatches("de um ou de outro", "de ou")
	assert.Equal(t, "de um ou de outro", got)
}

func TestTruncateOnWordBoundary(t *testing.T) {
	text := strings.Repeat("palavra ", 50)
	got := truncateOnWordBoundary(text, 300)

	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), 303)
	assert.NotContains(t, strings.TrimSuffix(got, "..."), "palavr a")
	for _, word := range strings.Fields(strings.TrimSuffix(got, "...")) {
		assert.Equal(t, "palavra", word)
	}
}

func TestTruncateShortTextUntouched(t *testing.T) {
	assert.Equal(t, "curto", truncateOnWordBoundary("curto", 300))
}
