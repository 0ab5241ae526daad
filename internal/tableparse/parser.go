package tableparse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/pdftext"
	"github.com/contaspt/docpipe/internal/store"
)

// Parser runs table region detection, structure extraction and line-item
// derivation over a document, persisting the results.
type Parser struct {
	detector  RegionDetector
	extractor StructureExtractor

	fallbackDetector  *HeuristicDetector
	fallbackExtractor *HeuristicExtractor

	store  store.Store
	logger *zap.Logger
}

// NewParser creates a table parser.
//
// detector and extractor are the model-backed paths and may be nil, in
// which case the heuristic fallback handles everything.
func NewParser(detector RegionDetector, extractor StructureExtractor, st store.Store, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		detector:          detector,
		extractor:         extractor,
		fallbackDetector:  NewHeuristicDetector(),
		fallbackExtractor: NewHeuristicExtractor(),
		store:             st,
		logger:            logger,
	}
}

// ExtractTablesAndLineItems extracts every table in a document and derives
// financial line items from their non-header rows.
//
// Zero detected regions short-circuits to a fallback text-extraction result
// with FallbackUsed set. A single region's extraction failure is logged and
// skipped; it does not abort the other regions. Expected failures surface
// through the result's Success/Error fields, not as returned errors.
func (p *Parser) ExtractTablesAndLineItems(ctx context.Context, data []byte, tenantID, documentID string) *TableExtractionResult {
	start := time.Now()
	result := &TableExtractionResult{}

	text, err := pdftext.Extract(data)
	if err != nil {
		p.logger.Warn("text extraction failed, using empty text layer",
			zap.String("document_id", documentID), zap.Error(err))
		text = ""
	}

	regions, fallbackUsed := p.detectRegions(ctx, data, text, documentID)
	if len(regions) == 0 {
		// No tables anywhere: degraded-but-successful.
		result.Success = true
		result.FallbackUsed = true
		result.ProcessingTime = time.Since(start)
		return result
	}

	source := string(MethodVisionModel)
	if fallbackUsed {
		source = string(MethodFallbackHeuristic)
	}

	for i, region := range regions {
		table, err := p.extractRegion(ctx, data, text, region, fallbackUsed)
		if err != nil {
			p.logger.Warn("table region extraction failed",
				zap.String("document_id", documentID),
				zap.Int("region", i),
				zap.Error(err))
			continue
		}
		if table == nil {
			continue
		}
		if table.Method == MethodFallbackHeuristic {
			result.FallbackUsed = true
		}

		items := DeriveLineItems(table, source)
		result.Tables = append(result.Tables, *table)
		result.LineItems = append(result.LineItems, items...)
	}

	result.TotalTables = len(result.Tables)
	result.TotalLineItems = len(result.LineItems)
	result.Success = true
	result.ProcessingTime = time.Since(start)

	if err := p.persist(ctx, tenantID, documentID, result); err != nil {
		p.logger.Warn("persisting table extraction failed",
			zap.String("document_id", documentID), zap.Error(err))
	}

	p.logger.Info("table extraction complete",
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID),
		zap.Int("tables", result.TotalTables),
		zap.Int("line_items", result.TotalLineItems),
		zap.Bool("fallback_used", result.FallbackUsed),
		zap.Duration("duration", result.ProcessingTime))

	return result
}

func (p *Parser) detectRegions(ctx context.Context, data []byte, text, documentID string) ([]TableRegion, bool) {
	if p.detector != nil {
		regions, err := p.detector.DetectRegions(ctx, data, text)
		if err == nil {
			return regions, false
		}
		p.logger.Warn("model region detection failed, falling back to heuristic",
			zap.String("document_id", documentID), zap.Error(err))
	}
	regions, _ := p.fallbackDetector.DetectRegions(ctx, data, text)
	return regions, true
}

func (p *Parser) extractRegion(ctx context.Context, data []byte, text string, region TableRegion, fallbackOnly bool) (*TableStructure, error) {
	if !fallbackOnly && p.extractor != nil {
		table, err := p.extractor.ExtractStructure(ctx, data, text, region)
		if err == nil {
			return table, nil
		}
		p.logger.Debug("model structure extraction failed, using heuristic", zap.Error(err))
	}
	return p.fallbackExtractor.ExtractStructure(ctx, data, text, region)
}

func (p *Parser) persist(ctx context.Context, tenantID, documentID string, result *TableExtractionResult) error {
	if p.store == nil {
		return nil
	}
	now := time.Now().UTC()
	for i, table := range result.Tables {
		structure, err := json.Marshal(table)
		if err != nil {
			return fmt.Errorf("marshal table structure: %w", err)
		}
		if err := p.store.SaveTableExtraction(ctx, &store.TableExtractionRow{
			TenantID:   tenantID,
			DocumentID: documentID,
			TableIndex: i,
			Structure:  structure,
			Method:     string(table.Method),
			Confidence: table.Confidence,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("save table extraction: %w", err)
		}
	}

	rows := make([]store.LineItemRow, 0, len(result.LineItems))
	for _, item := range result.LineItems {
		rows = append(rows, store.LineItemRow{
			TenantID:    tenantID,
			DocumentID:  documentID,
			RowIndex:    item.RowIndex,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalAmount: item.TotalAmount,
			VATRate:     item.VATRate,
			VATAmount:   item.VATAmount,
			Category:    item.Category,
			Confidence:  item.Confidence,
			CreatedAt:   now,
		})
	}
	if len(rows) > 0 {
		if err := p.store.SaveLineItems(ctx, rows); err != nil {
			return fmt.Errorf("save line items: %w", err)
		}
	}
	return nil
}
