package consensus

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
)

// Consensus method tags recorded on results.
const (
	MethodNone             = "no_extractions"
	MethodSingleExtraction = "single_extraction"
	MethodMultiModel       = "multi_model_consensus"
)

// Engine merges extraction attempts into consensus results. Persistence
// of results and agreement metadata is best effort and never fails the
// merge.
type Engine struct {
	results    store.ConsensusStore
	provenance store.ProvenanceStore
	logger     *zap.Logger
}

// NewEngine creates an engine. Either store may be nil to disable that
// persistence path.
func NewEngine(results store.ConsensusStore, provenance store.ProvenanceStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{results: results, provenance: provenance, logger: logger}
}

// BuildConsensus reconciles the extraction attempts for one document.
// Zero attempts yield an empty result with confidence 0.
func (e *Engine) BuildConsensus(ctx context.Context, documentID string, extractions []ExtractionResult) (*Result, error) {
	start := time.Now()

	result := &Result{
		Success:    true,
		DocumentID: documentID,
		FinalData:  map[string]interface{}{},
		Method:     methodFor(len(extractions)),
	}

	data := buildDataConsensus(extractions)
	items := buildLineItemConsensus(extractions, e.logger)

	for name, fc := range data.fields {
		result.FinalData[name] = fc.value
	}
	result.LineItems = items

	if len(items) > 0 {
		totalAmount := 0.0
		totalVAT := 0.0
		categories := distinctCategories(items)
		for _, item := range items {
			totalAmount += item.TotalAmount
			totalVAT += item.VATAmount
		}
		result.FinalData["lineItems"] = items
		result.FinalData["totalLineItems"] = len(items)
		result.FinalData["totalAmount"] = totalAmount
		result.FinalData["totalVAT"] = totalVAT
		result.FinalData["categories"] = categories
	}

	result.Confidence = overallConfidence(len(extractions), data.confidence, items)
	result.ProcessingTime = time.Since(start)

	e.persist(ctx, result, data, len(extractions))

	e.logger.Info("consensus built",
		zap.String("document_id", documentID),
		zap.Int("extractions", len(extractions)),
		zap.Int("line_items", len(items)),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

func methodFor(extractions int) string {
	switch extractions {
	case 0:
		return MethodNone
	case 1:
		return MethodSingleExtraction
	default:
		return MethodMultiModel
	}
}

// overallConfidence averages data confidence with the mean line-item
// confidence. Without line items only the data pass contributes.
func overallConfidence(extractions int, dataConfidence float64, items []LineItemConsensus) float64 {
	if extractions == 0 {
		return 0
	}
	if len(items) == 0 {
		return dataConfidence
	}
	itemSum := 0.0
	for _, item := range items {
		itemSum += item.Confidence
	}
	return (dataConfidence + itemSum/float64(len(items))) / 2
}

func distinctCategories(items []LineItemConsensus) []string {
	seen := map[string]struct{}{}
	var categories []string
	for _, item := range items {
		if item.Category == "" {
			continue
		}
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		categories = append(categories, item.Category)
	}
	return categories
}

// persist writes the consensus result and agreement metadata. Failures
// are logged, never returned.
func (e *Engine) persist(ctx context.Context, result *Result, data dataConsensus, totalModels int) {
	if e.results == nil && e.provenance == nil {
		return
	}
	info, err := tenant.FromContext(ctx)
	if err != nil {
		e.logger.Warn("consensus result not persisted", zap.Error(err))
		return
	}

	if e.results != nil {
		row := &store.ConsensusResultRow{
			TenantID:       info.TenantID,
			DocumentID:     result.DocumentID,
			Confidence:     result.Confidence,
			Method:         result.Method,
			ProcessingTime: result.ProcessingTime,
			CreatedAt:      time.Now().UTC(),
		}
		row.FinalData, _ = json.Marshal(result.FinalData)
		row.LineItems, _ = json.Marshal(result.LineItems)
		if err := e.results.SaveConsensusResult(ctx, row); err != nil {
			e.logger.Warn("consensus result not persisted",
				zap.String("document_id", result.DocumentID),
				zap.Error(err))
		}
	}

	if e.provenance != nil {
		meta := &store.ConsensusMetadataRow{
			TenantID:        info.TenantID,
			DocumentID:      result.DocumentID,
			TotalModels:     totalModels,
			AgreementLevel:  data.agreement,
			Strategy:        result.Method,
			FinalConfidence: result.Confidence,
			FieldModels:     data.fieldModels,
			CreatedAt:       time.Now().UTC(),
		}
		if err := e.provenance.SaveConsensusMetadata(ctx, meta); err != nil {
			e.logger.Warn("consensus metadata not persisted",
				zap.String("document_id", result.DocumentID),
				zap.Error(err))
		}
	}
}
