// Package classifier routes documents to processing pipelines based on
// extracted document features.
//
// An untrained classifier uses fixed rules; once training samples are
// loaded it switches to weighted composite scores whose weights are
// re-derived from observed extraction performance.
//
// Evaluation metrics are deliberately a proxy: each prediction collapses to
// one correct/incorrect bit, so precision equals accuracy and recall is 1
// by construction. The simplification is kept for behavioral parity with
// the production routing history; it is not a faithful multi-class metric.
package classifier

import "time"

// PriorityLevel orders documents for processing.
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "high"
	PriorityMedium PriorityLevel = "medium"
	PriorityLow    PriorityLevel = "low"
)

// Pipeline names a processing pipeline.
type Pipeline string

const (
	PipelineVisionEnhanced    Pipeline = "vision_enhanced"
	PipelineConsensusEnhanced Pipeline = "consensus_enhanced"
	PipelineBasicExtraction   Pipeline = "basic_extraction"
)

// DocumentFeatures are the per-document signals feeding classification.
// Ephemeral: only the routing decision and its observed outcome are
// persisted (as training data), never the features alone.
type DocumentFeatures struct {
	// DocumentLength is the raw byte count.
	DocumentLength int `json:"document_length"`

	// OCRQuality estimates text layer quality in [0,1].
	OCRQuality float64 `json:"ocr_quality"`

	// FileType is the detected file type (pdf, image, text, unknown).
	FileType string `json:"file_type"`

	// KeywordDensity maps financial keywords to their per-word density.
	KeywordDensity map[string]float64 `json:"keyword_density"`

	// TableDensity estimates the fraction of table-like content in [0,1].
	TableDensity float64 `json:"table_density"`

	// ImageDensity estimates the fraction of non-text content in [0,1].
	ImageDensity float64 `json:"image_density"`

	// TextComplexity is lexical diversity in [0,1].
	TextComplexity float64 `json:"text_complexity"`

	// HasStructuredData flags obvious structured content.
	HasStructuredData bool `json:"has_structured_data"`

	// Language is the detected document language.
	Language string `json:"language"`

	// Confidence is the feature extractor's own confidence.
	Confidence float64 `json:"confidence"`
}

// RoutingDecision is the classifier's output for one document.
type RoutingDecision struct {
	UseVision               bool          `json:"use_vision"`
	UseConsensus            bool          `json:"use_consensus"`
	PriorityLevel           PriorityLevel `json:"priority_level"`
	Confidence              float64       `json:"confidence"`
	Reasoning               string        `json:"reasoning"`
	RecommendedPipeline     Pipeline      `json:"recommended_pipeline"`
	EstimatedProcessingTime time.Duration `json:"estimated_processing_time"`
}

// Performance is the observed outcome of a routing decision, closing the
// training feedback loop.
type Performance struct {
	Accuracy         float64 `json:"accuracy"`
	ProcessingTime   float64 `json:"processing_time"`
	UserSatisfaction float64 `json:"user_satisfaction"`
}

// TrainingSample pairs features and decision with observed performance.
type TrainingSample struct {
	Features    DocumentFeatures `json:"features"`
	Decision    RoutingDecision  `json:"decision"`
	Performance Performance      `json:"performance"`
}

// Evaluation reports classifier quality over a sample set.
type Evaluation struct {
	Total     int     `json:"total"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}
