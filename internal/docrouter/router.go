// Package docrouter selects and executes a processing pipeline per
// document, driven by the ML classifier's routing decision.
package docrouter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/classifier"
	"github.com/contaspt/docpipe/internal/consensus"
	"github.com/contaspt/docpipe/internal/tableparse"
	"github.com/contaspt/docpipe/internal/tenant"
)

// ErrEmptyDocument is returned for zero-length document data.
var ErrEmptyDocument = errors.New("empty document data")

// PipelineInfo is the static description of one named pipeline. The
// observed routing decision overrides the estimate and confidence at
// execution time.
type PipelineInfo struct {
	Name           classifier.Pipeline `json:"name"`
	EstimatedTime  time.Duration       `json:"estimated_time"`
	BaseConfidence float64             `json:"base_confidence"`
	Steps          []string            `json:"steps"`
}

func pipelineCatalog() map[classifier.Pipeline]PipelineInfo {
	return map[classifier.Pipeline]PipelineInfo{
		classifier.PipelineVisionEnhanced: {
			Name:           classifier.PipelineVisionEnhanced,
			EstimatedTime:  8 * time.Second,
			BaseConfidence: 0.85,
			Steps: []string{
				"analyze document layout",
				"extract tables with vision model",
				"derive financial line items",
			},
		},
		classifier.PipelineConsensusEnhanced: {
			Name:           classifier.PipelineConsensusEnhanced,
			EstimatedTime:  15 * time.Second,
			BaseConfidence: 0.9,
			Steps: []string{
				"run extraction attempts",
				"reconcile results into consensus",
				"record agreement metadata",
			},
		},
		classifier.PipelineBasicExtraction: {
			Name:           classifier.PipelineBasicExtraction,
			EstimatedTime:  3 * time.Second,
			BaseConfidence: 0.7,
			Steps: []string{
				"extract text layer",
				"parse tables heuristically",
			},
		},
	}
}

// RoutingResult is the outcome of routing one document.
type RoutingResult struct {
	Success        bool                              `json:"success"`
	DocumentID     string                            `json:"document_id"`
	Decision       classifier.RoutingDecision        `json:"routing_decision"`
	Pipeline       PipelineInfo                      `json:"pipeline"`
	EstimatedTime  time.Duration                     `json:"estimated_time"`
	Confidence     float64                           `json:"confidence"`
	Extraction     *tableparse.TableExtractionResult `json:"extraction,omitempty"`
	Consensus      *consensus.Result                 `json:"consensus,omitempty"`
	ProcessingTime time.Duration                     `json:"processing_time"`
	Error          string                            `json:"error,omitempty"`
}

// BatchDocument is one document in a batch routing request.
type BatchDocument struct {
	DocumentID string
	Data       []byte
	Meta       classifier.FileMetadata
}

// Router executes the pipeline the classifier selects. The vision parser
// carries the model-backed table path; the text parser is heuristic-only
// and serves the text consensus and basic paths.
type Router struct {
	classifier   *classifier.Classifier
	visionParser *tableparse.Parser
	textParser   *tableparse.Parser
	engine       *consensus.Engine
	logger       *zap.Logger
}

func NewRouter(cls *classifier.Classifier, visionParser, textParser *tableparse.Parser, engine *consensus.Engine, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		classifier:   cls,
		visionParser: visionParser,
		textParser:   textParser,
		engine:       engine,
		logger:       logger,
	}
}

// fallbackDecision is the safe decision used when routing itself fails.
// Routing is never a hard failure point for ingestion.
func fallbackDecision() classifier.RoutingDecision {
	return classifier.RoutingDecision{
		UseVision:           false,
		UseConsensus:        false,
		PriorityLevel:       classifier.PriorityMedium,
		Confidence:          0.5,
		Reasoning:           "routing failed, safe fallback",
		RecommendedPipeline: classifier.PipelineBasicExtraction,
	}
}

// RouteDocument classifies a document and runs the selected pipeline.
// Internal failures degrade to the basic pipeline with a safe fallback
// decision instead of surfacing an error to the caller.
func (r *Router) RouteDocument(ctx context.Context, data []byte, meta classifier.FileMetadata, documentID string) (result *RoutingResult) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("routing panicked, using safe fallback",
				zap.String("document_id", documentID),
				zap.Any("panic", rec))
			result = r.fallbackResult(ctx, data, documentID, fmt.Sprintf("routing panic: %v", rec))
			result.ProcessingTime = time.Since(start)
		}
	}()

	if len(data) == 0 {
		return &RoutingResult{
			DocumentID:     documentID,
			Decision:       fallbackDecision(),
			Pipeline:       pipelineCatalog()[classifier.PipelineBasicExtraction],
			Confidence:     0.5,
			Error:          ErrEmptyDocument.Error(),
			ProcessingTime: time.Since(start),
		}
	}

	features := r.classifier.ExtractDocumentFeatures(data, meta)
	decision := r.classifier.ClassifyDocument(features)
	result = r.execute(ctx, data, documentID, decision)
	result.ProcessingTime = time.Since(start)

	r.logger.Info("document routed",
		zap.String("document_id", documentID),
		zap.String("pipeline", string(result.Pipeline.Name)),
		zap.Bool("use_vision", decision.UseVision),
		zap.Bool("use_consensus", decision.UseConsensus),
		zap.Duration("processing_time", result.ProcessingTime))
	return result
}

// execute runs the decision table keyed by the classifier's two booleans.
func (r *Router) execute(ctx context.Context, data []byte, documentID string, decision classifier.RoutingDecision) *RoutingResult {
	var pipeline classifier.Pipeline
	switch {
	case decision.UseVision && decision.UseConsensus:
		pipeline = classifier.PipelineConsensusEnhanced
	case decision.UseVision:
		pipeline = classifier.PipelineVisionEnhanced
	case decision.UseConsensus:
		pipeline = classifier.PipelineConsensusEnhanced
	default:
		pipeline = classifier.PipelineBasicExtraction
	}

	result := &RoutingResult{
		Success:       true,
		DocumentID:    documentID,
		Decision:      decision,
		Pipeline:      pipelineCatalog()[pipeline],
		EstimatedTime: decision.EstimatedProcessingTime,
		Confidence:    decision.Confidence,
	}

	tenantID := ""
	if info, err := tenant.FromContext(ctx); err == nil {
		tenantID = info.TenantID
	}

	switch {
	case decision.UseVision && decision.UseConsensus:
		extraction := r.visionParser.ExtractTablesAndLineItems(ctx, data, tenantID, documentID)
		result.Extraction = extraction
		merged, err := r.engine.BuildConsensus(ctx, documentID, []consensus.ExtractionResult{
			extractionAttempt("vision_model", extraction),
		})
		if err != nil {
			return r.fallbackResult(ctx, data, documentID, err.Error())
		}
		result.Consensus = merged

	case decision.UseVision:
		result.Extraction = r.visionParser.ExtractTablesAndLineItems(ctx, data, tenantID, documentID)

	case decision.UseConsensus:
		extraction := r.textParser.ExtractTablesAndLineItems(ctx, data, tenantID, documentID)
		result.Extraction = extraction
		merged, err := r.engine.BuildConsensus(ctx, documentID, []consensus.ExtractionResult{
			extractionAttempt("text_extraction", extraction),
		})
		if err != nil {
			return r.fallbackResult(ctx, data, documentID, err.Error())
		}
		result.Consensus = merged

	default:
		result.Extraction = r.textParser.ExtractTablesAndLineItems(ctx, data, tenantID, documentID)
	}
	return result
}

// fallbackResult runs the basic pipeline under the safe fallback decision.
func (r *Router) fallbackResult(ctx context.Context, data []byte, documentID, cause string) *RoutingResult {
	result := r.execute(ctx, data, documentID, fallbackDecision())
	result.Confidence = 0.5
	result.Error = cause
	return result
}

// extractionAttempt adapts a table extraction into a consensus input.
func extractionAttempt(model string, extraction *tableparse.TableExtractionResult) consensus.ExtractionResult {
	confidence := 0.5
	if len(extraction.Tables) > 0 {
		sum := 0.0
		for _, table := range extraction.Tables {
			sum += table.Confidence
		}
		confidence = sum / float64(len(extraction.Tables))
	}
	return consensus.ExtractionResult{
		Model:      model,
		LineItems:  extraction.LineItems,
		Confidence: confidence,
	}
}

// BatchRouteDocuments routes documents sequentially. A failing document
// produces an error entry at its position; the rest of the batch still
// runs.
func (r *Router) BatchRouteDocuments(ctx context.Context, docs []BatchDocument) []*RoutingResult {
	results := make([]*RoutingResult, 0, len(docs))
	for _, doc := range docs {
		result := r.RouteDocument(ctx, doc.Data, doc.Meta, doc.DocumentID)
		if result.Error != "" {
			result.Success = false
		}
		results = append(results, result)
	}
	return results
}
