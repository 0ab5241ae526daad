package layout

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/pdftext"
	"github.com/contaspt/docpipe/internal/tableparse"
)

// Class is the coarse layout classification of a document.
type Class string

const (
	ClassTabular Class = "tabular"
	ClassText    Class = "text"
	ClassMixed   Class = "mixed"
	ClassImage   Class = "image"
)

// Pipeline names reported by RoutePDF.
const (
	PipelineAdvancedTable       = "advanced_table"
	PipelineBasicText           = "basic_text"
	PipelineFallbackText        = "fallback_text"
	PipelineAdvancedTableFailed = "advanced_table_failed"
	PipelineBasicTextFailed     = "basic_text_failed"
)

// DefaultDetectionTimeout caps enhanced table-region detection.
const DefaultDetectionTimeout = 30 * time.Second

// AnalysisResult is the output of layout analysis.
type AnalysisResult struct {
	Class     Class
	Heuristic HeuristicResult

	// DetectedRegions is the enhanced detector's region count, or the
	// heuristic estimate when detection failed or timed out.
	DetectedRegions   int
	DetectionTimedOut bool

	// Text is the extracted text layer, empty for image-only documents.
	Text string
}

// RoutingDecision selects the pipelines the analysis calls for.
type RoutingDecision struct {
	// Pipelines is executed in order; later pipelines supplement the
	// first (hybrid routing for mixed layouts).
	Pipelines []string
	Reason    string
}

// RouteResult reports which pipeline produced the final output.
type RouteResult struct {
	Success        bool
	Pipeline       string
	Text           string
	Extraction     *tableparse.TableExtractionResult
	ProcessingTime time.Duration
	Error          string
}

// Router analyzes document layout and executes the selected pipeline.
type Router struct {
	detector         tableparse.RegionDetector
	parser           *tableparse.Parser
	detectionTimeout time.Duration
	logger           *zap.Logger
}

// NewRouter creates a layout router. detector may be nil, disabling the
// enhanced detection pass.
func NewRouter(detector tableparse.RegionDetector, parser *tableparse.Parser, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		detector:         detector,
		parser:           parser,
		detectionTimeout: DefaultDetectionTimeout,
		logger:           logger,
	}
}

// SetDetectionTimeout overrides the enhanced-detection cap. Test hook.
func (r *Router) SetDetectionTimeout(d time.Duration) {
	r.detectionTimeout = d
}

// AnalyzeLayout classifies a document as tabular, text, mixed or image.
//
// Enhanced region detection runs under a hard timeout; when it fails or
// times out the heuristic's own table-count estimate stands in rather than
// failing the whole call.
func (r *Router) AnalyzeLayout(ctx context.Context, data []byte) *AnalysisResult {
	result := &AnalysisResult{}

	text, err := pdftext.Extract(data)
	if err != nil {
		result.Class = ClassImage
		return result
	}
	result.Text = text
	result.Heuristic = ScoreText(text)
	result.DetectedRegions = result.Heuristic.EstimatedTableCount

	if r.detector != nil {
		regions, timedOut := r.detectWithTimeout(ctx, data, text)
		result.DetectionTimedOut = timedOut
		if !timedOut && regions >= 0 {
			result.DetectedRegions = regions
		}
	}

	result.Class = classify(result)
	return result
}

// detectWithTimeout runs enhanced detection under the configured cap.
// Returns -1 when detection failed.
func (r *Router) detectWithTimeout(ctx context.Context, data []byte, text string) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.detectionTimeout)
	defer cancel()

	type outcome struct {
		regions []tableparse.TableRegion
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		regions, err := r.detector.DetectRegions(ctx, data, text)
		ch <- outcome{regions, err}
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("enhanced table detection timed out, using heuristic estimate")
		return -1, true
	case out := <-ch:
		if out.err != nil {
			r.logger.Warn("enhanced table detection failed, using heuristic estimate", zap.Error(out.err))
			return -1, false
		}
		return len(out.regions), false
	}
}

func classify(result *AnalysisResult) Class {
	if result.Text == "" {
		return ClassImage
	}
	hasTables := result.DetectedRegions > 0 && result.Heuristic.SuggestsTables
	if !hasTables {
		return ClassText
	}
	// Tables plus a substantial prose remainder is a mixed layout.
	proseLines := 0
	totalLines := 0
	for _, line := range strings.Split(result.Text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		totalLines++
		if !alignmentPattern.MatchString(line) && !moneyPattern.MatchString(line) {
			proseLines++
		}
	}
	if totalLines > 0 && float64(proseLines)/float64(totalLines) > 0.5 {
		return ClassMixed
	}
	return ClassTabular
}

// MakeRoutingDecision maps a layout class to the pipelines to execute:
// tabular runs the advanced table pipeline, mixed runs both, text and
// image run basic text extraction.
func (r *Router) MakeRoutingDecision(analysis *AnalysisResult) RoutingDecision {
	switch analysis.Class {
	case ClassTabular:
		return RoutingDecision{
			Pipelines: []string{PipelineAdvancedTable},
			Reason:    "table-dominated layout",
		}
	case ClassMixed:
		return RoutingDecision{
			Pipelines: []string{PipelineAdvancedTable, PipelineBasicText},
			Reason:    "mixed layout: tables plus prose",
		}
	default:
		return RoutingDecision{
			Pipelines: []string{PipelineBasicText},
			Reason:    "no table signal",
		}
	}
}

// RoutePDF analyzes a document, executes the decided pipelines, and reports
// which pipeline ultimately produced the result. Whenever the advanced
// pipeline fails or reports failure, routing falls back to basic text
// extraction and tags the result accordingly.
func (r *Router) RoutePDF(ctx context.Context, data []byte, tenantID, documentID string) *RouteResult {
	start := time.Now()
	analysis := r.AnalyzeLayout(ctx, data)
	decision := r.MakeRoutingDecision(analysis)

	result := &RouteResult{Text: analysis.Text}

	for _, pipeline := range decision.Pipelines {
		switch pipeline {
		case PipelineAdvancedTable:
			extraction := r.parser.ExtractTablesAndLineItems(ctx, data, tenantID, documentID)
			if extraction.Success {
				result.Success = true
				result.Pipeline = PipelineAdvancedTable
				result.Extraction = extraction
			} else {
				r.logger.Warn("advanced table pipeline failed, falling back to text",
					zap.String("document_id", documentID),
					zap.String("error", extraction.Error))
				result.Pipeline = PipelineAdvancedTableFailed
			}
		case PipelineBasicText:
			if analysis.Text != "" {
				result.Success = true
				if result.Pipeline == PipelineAdvancedTableFailed {
					result.Pipeline = PipelineFallbackText
				} else if result.Pipeline == "" {
					result.Pipeline = PipelineBasicText
				}
			} else if result.Pipeline == "" {
				result.Pipeline = PipelineBasicTextFailed
				result.Error = "no extractable text"
			}
		}
	}

	// An advanced-only route that failed still gets the text fallback.
	if result.Pipeline == PipelineAdvancedTableFailed {
		if analysis.Text != "" {
			result.Success = true
			result.Pipeline = PipelineFallbackText
		} else {
			result.Error = "advanced pipeline failed and no text layer available"
		}
	}

	result.ProcessingTime = time.Since(start)

	r.logger.Info("document routed",
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID),
		zap.String("class", string(analysis.Class)),
		zap.String("pipeline", result.Pipeline),
		zap.Duration("duration", result.ProcessingTime))

	return result
}
