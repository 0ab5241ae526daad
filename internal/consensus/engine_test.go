package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tableparse"
	"github.com/contaspt/docpipe/internal/tenant"
)

func testContext() context.Context {
	return tenant.NewContext(context.Background(), &tenant.Info{TenantID: "tenant-1"})
}

func TestBuildConsensus_NoExtractions(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	result, err := engine.BuildConsensus(context.Background(), "doc-1", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.FinalData)
	assert.Equal(t, MethodNone, result.Method)
}

func TestBuildConsensus_SingleExtractionPassesThrough(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{{
		Model:      "gemini",
		Confidence: 0.85,
		Data: map[string]FieldValue{
			"vendor": {Value: "Acme Corporation", Confidence: 0.9},
			"nif":    {Value: "501234567", Confidence: 0.95},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, MethodSingleExtraction, result.Method)
	assert.Equal(t, "Acme Corporation", result.FinalData["vendor"])
	assert.Equal(t, "501234567", result.FinalData["nif"])
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
}

func TestBuildConsensus_ExactAgreementAveragesConfidence(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{
		{Model: "gemini", Data: map[string]FieldValue{"vendor": {Value: "Acme", Confidence: 0.8}}},
		{Model: "openai", Data: map[string]FieldValue{"vendor": {Value: "Acme", Confidence: 0.6}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", result.FinalData["vendor"])
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
	assert.Equal(t, MethodMultiModel, result.Method)
}

func TestBuildConsensus_SimilarStringsCluster(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	// One trailing character differs: similarity stays above the
	// clustering threshold, so both values land in one cluster.
	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{
		{Model: "gemini", Data: map[string]FieldValue{"vendor": {Value: "Acme Corporation", Confidence: 0.9}}},
		{Model: "openai", Data: map[string]FieldValue{"vendor": {Value: "Acme Corporation.", Confidence: 0.7}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", result.FinalData["vendor"])
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
}

func TestBuildConsensus_DisagreementPicksHighestConfidence(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{
		{Model: "gemini", Data: map[string]FieldValue{"vendor": {Value: "Acme Corp", Confidence: 0.7}}},
		{Model: "openai", Data: map[string]FieldValue{"vendor": {Value: "ACME Corp.", Confidence: 0.6}}},
		{Model: "claude", Data: map[string]FieldValue{"vendor": {Value: "Widget Co", Confidence: 0.95}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Widget Co", result.FinalData["vendor"])
}

func TestBuildConsensus_LineItemMedianResistsOutlier(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	extractions := []ExtractionResult{
		{Model: "gemini", LineItems: []tableparse.LineItem{
			{Description: "Consulting Services", TotalAmount: 100, Category: "Services", Confidence: 0.9},
		}},
		{Model: "openai", LineItems: []tableparse.LineItem{
			{Description: "Consulting Services", TotalAmount: 102, Category: "Services", Confidence: 0.8},
		}},
		{Model: "claude", LineItems: []tableparse.LineItem{
			{Description: "consulting  services!", TotalAmount: 5000, Category: "Other", Confidence: 0.4},
		}},
	}

	result, err := engine.BuildConsensus(context.Background(), "doc-1", extractions)
	require.NoError(t, err)
	require.Len(t, result.LineItems, 1)

	item := result.LineItems[0]
	assert.InDelta(t, 102, item.TotalAmount, 1e-9)
	assert.Equal(t, "Services", item.Category)
	assert.InDelta(t, 0.7, item.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"gemini", "openai", "claude"}, item.Sources)
}

func TestBuildConsensus_VATRecomputedFromMergedValues(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{
		{Model: "a", LineItems: []tableparse.LineItem{
			{Description: "Software Licence", TotalAmount: 100, VATRate: 23, VATAmount: 23, Confidence: 0.9, Category: "Software"},
		}},
		{Model: "b", LineItems: []tableparse.LineItem{
			{Description: "Software Licence", TotalAmount: 200, VATRate: 23, VATAmount: 46, Confidence: 0.9, Category: "Software"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, result.LineItems, 1)

	item := result.LineItems[0]
	assert.InDelta(t, 150, item.TotalAmount, 1e-9)
	assert.InDelta(t, 150*23/100.0, item.VATAmount, 1e-6)
}

func TestBuildConsensus_GroupResolutionFallback(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	// No positive total in the group: resolution fails and the first
	// item is used with discounted confidence.
	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{
		{Model: "a", LineItems: []tableparse.LineItem{
			{Description: "Credit Note Adjustment", TotalAmount: 0, Confidence: 0.9, Category: "Other"},
		}},
		{Model: "b", LineItems: []tableparse.LineItem{
			{Description: "Credit Note Adjustment", TotalAmount: 0, Confidence: 0.7, Category: "Other"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, result.LineItems, 1)

	item := result.LineItems[0]
	assert.InDelta(t, 0.9*0.8, item.Confidence, 1e-9)
	assert.Equal(t, []string{"fallback_consensus"}, item.Sources)
}

func TestBuildConsensus_SingleItemSource(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{
		{Model: "gemini", LineItems: []tableparse.LineItem{
			{Description: "Office Chair", TotalAmount: 250, Category: "Office Supplies", Confidence: 0.8},
		}},
	})
	require.NoError(t, err)
	require.Len(t, result.LineItems, 1)
	assert.Equal(t, []string{"single_extraction"}, result.LineItems[0].Sources)
}

func TestBuildConsensus_FinalMergeTotals(t *testing.T) {
	engine := NewEngine(nil, nil, zap.NewNop())

	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{{
		Model:      "gemini",
		Confidence: 0.9,
		Data:       map[string]FieldValue{"vendor": {Value: "Acme", Confidence: 0.9}},
		LineItems: []tableparse.LineItem{
			{Description: "Consulting", TotalAmount: 1000, VATRate: 23, VATAmount: 230, Category: "Services", Confidence: 0.9},
			{Description: "Laptop", TotalAmount: 800, VATRate: 23, VATAmount: 184, Category: "Hardware", Confidence: 0.7},
		},
	}})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FinalData["totalLineItems"])
	assert.InDelta(t, 1800, result.FinalData["totalAmount"].(float64), 1e-9)
	assert.InDelta(t, 414, result.FinalData["totalVAT"].(float64), 1e-9)
	assert.ElementsMatch(t, []string{"Services", "Hardware"}, result.FinalData["categories"].([]string))

	// Data confidence 0.9, mean item confidence 0.8.
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
}

func TestBuildConsensus_Persistence(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st, st, zap.NewNop())
	ctx := testContext()

	_, err := engine.BuildConsensus(ctx, "doc-1", []ExtractionResult{
		{Model: "gemini", Data: map[string]FieldValue{"vendor": {Value: "Acme", Confidence: 0.8}}},
		{Model: "openai", Data: map[string]FieldValue{"vendor": {Value: "Acme", Confidence: 0.8}}},
	})
	require.NoError(t, err)

	results := st.ConsensusResults()
	require.Len(t, results, 1)
	assert.Equal(t, "tenant-1", results[0].TenantID)
	assert.Equal(t, MethodMultiModel, results[0].Method)

	meta, err := st.ListConsensusMetadata(ctx, "tenant-1", "doc-1")
	require.NoError(t, err)
	require.Len(t, meta, 1)
	assert.Equal(t, 2, meta[0].TotalModels)
	assert.InDelta(t, 1.0, meta[0].AgreementLevel, 1e-9)
	assert.Equal(t, "gemini", meta[0].FieldModels["vendor"])
}

func TestBuildConsensus_MissingTenantSkipsPersistence(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st, st, zap.NewNop())

	result, err := engine.BuildConsensus(context.Background(), "doc-1", []ExtractionResult{
		{Model: "gemini", Confidence: 0.9, Data: map[string]FieldValue{"vendor": {Value: "Acme", Confidence: 0.9}}},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, st.ConsensusResults())
}
