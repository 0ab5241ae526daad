// Package consensus reconciles one or more independent extraction attempts
// into a single best-estimate record per document.
//
// Header fields are reconciled per field name: exact agreement averages
// confidence, near-identical strings are clustered by edit-distance
// similarity, genuine disagreement falls back to the highest-confidence
// value. Line items are reconciled by normalized description: numeric
// fields resolve to the median of positive values, category to the mode,
// confidence to the mean.
package consensus

import (
	"time"

	"github.com/contaspt/docpipe/internal/tableparse"
)

// FieldValue is one extractor's value for a named header field.
type FieldValue struct {
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"`
}

// ExtractionResult is one extraction attempt over a document.
type ExtractionResult struct {
	// Model tags the extractor that produced this attempt.
	Model string `json:"model"`

	// Data holds the extracted header fields.
	Data map[string]FieldValue `json:"data"`

	// LineItems are the attempt's parsed table rows.
	LineItems []tableparse.LineItem `json:"line_items"`

	// Confidence is the attempt's overall confidence.
	Confidence float64 `json:"confidence"`
}

// LineItemConsensus is the merged form of 1..N line items judged to
// describe the same line.
type LineItemConsensus struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity,omitempty"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
	TotalAmount float64 `json:"total_amount"`
	VATRate     float64 `json:"vat_rate,omitempty"`
	VATAmount   float64 `json:"vat_amount,omitempty"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`

	// Sources lists the provenance tags of the contributing items.
	Sources []string `json:"sources"`
}

// Result is the merged output of one consensus run.
type Result struct {
	Success        bool                   `json:"success"`
	DocumentID     string                 `json:"document_id"`
	FinalData      map[string]interface{} `json:"final_data"`
	LineItems      []LineItemConsensus    `json:"line_items"`
	Confidence     float64                `json:"confidence"`
	Method         string                 `json:"consensus_method"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Error          string                 `json:"error,omitempty"`
}

// fieldConsensus is the resolved value of one header field.
type fieldConsensus struct {
	value      interface{}
	confidence float64
}
