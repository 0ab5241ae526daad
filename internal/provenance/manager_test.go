package provenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
)

func testContext() context.Context {
	return tenant.NewContext(context.Background(), &tenant.Info{TenantID: "tenant-1"})
}

func TestExtractAndStoreProvenance_RoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	manager := NewManager(st, zap.NewNop())
	ctx := testContext()

	err := manager.ExtractAndStoreProvenance(ctx, "doc-1", &ExtractionProvenance{
		Fields: map[string]Record{
			"vendor": {Model: "gemini-2.5-flash", Method: "vision", Confidence: 0.92, RawValue: "Acme Corporation"},
			"nif":    {Model: "gemini-2.5-flash", Method: "vision", Confidence: 0.98, RawValue: "501234567"},
		},
		LineItems: map[int]map[string]Record{
			0: {"total_amount": {Model: "openai-gpt-4o", Method: "text", Confidence: 0.8, RawValue: "1500.00"}},
		},
	})
	require.NoError(t, err)

	got, err := manager.GetDocumentProvenance(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, got.Fields, 2)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "total_amount", got.LineItems[0].FieldName)
	assert.Equal(t, 0, got.LineItems[0].RowIndex)
	assert.Empty(t, got.Consensus)
}

func TestExtractAndStoreProvenance_AbsentProvenanceSkips(t *testing.T) {
	st := store.NewMemoryStore()
	manager := NewManager(st, zap.NewNop())
	ctx := testContext()

	require.NoError(t, manager.ExtractAndStoreProvenance(ctx, "doc-1", nil))
	require.NoError(t, manager.ExtractAndStoreProvenance(ctx, "doc-1", &ExtractionProvenance{}))

	got, err := manager.GetDocumentProvenance(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got.Fields)
	assert.Empty(t, got.LineItems)
}

func TestProvenance_RequiresTenant(t *testing.T) {
	manager := NewManager(store.NewMemoryStore(), zap.NewNop())

	err := manager.ExtractAndStoreProvenance(context.Background(), "doc-1", nil)
	assert.ErrorIs(t, err, tenant.ErrMissingTenant)

	_, err = manager.GetDocumentProvenance(context.Background(), "doc-1")
	assert.ErrorIs(t, err, tenant.ErrMissingTenant)
}

func TestGetDocumentProvenance_NewestFirst(t *testing.T) {
	st := store.NewMemoryStore()
	manager := NewManager(st, zap.NewNop())
	ctx := testContext()

	for _, raw := range []string{"first", "second"} {
		require.NoError(t, manager.ExtractAndStoreProvenance(ctx, "doc-1", &ExtractionProvenance{
			Fields: map[string]Record{"vendor": {Model: "gemini", RawValue: raw}},
		}))
	}

	got, err := manager.GetDocumentProvenance(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got.Fields, 2)
	assert.False(t, got.Fields[0].CreatedAt.Before(got.Fields[1].CreatedAt))
}
