// Package tableparse extracts table structures and financial line items
// from uploaded documents.
//
// Extraction runs in two stages: table region detection, then per-region
// structure extraction. Both stages have a model-backed path (an injected
// vision/document-understanding client) and a heuristic fallback that works
// on the extracted text layer alone. A single region's failure never aborts
// the remaining regions.
package tableparse

import (
	"context"
	"time"
)

// ExtractionMethod identifies which path produced a table structure.
type ExtractionMethod string

const (
	// MethodVisionModel is the layout-aware vision model path.
	MethodVisionModel ExtractionMethod = "vision_model"

	// MethodDocumentModel is the document-understanding model path.
	MethodDocumentModel ExtractionMethod = "document_model"

	// MethodFallbackHeuristic is the text-layer heuristic path.
	MethodFallbackHeuristic ExtractionMethod = "fallback_heuristic"
)

// DataType is the inferred type of a table column.
type DataType string

const (
	DataTypeText       DataType = "text"
	DataTypeNumber     DataType = "number"
	DataTypeDate       DataType = "date"
	DataTypeCurrency   DataType = "currency"
	DataTypePercentage DataType = "percentage"
)

// TableRegion is one detected table area within a document.
type TableRegion struct {
	// Page is the 1-based page number, 0 when unknown.
	Page int

	// StartLine and EndLine bound the region within the text layer
	// (inclusive start, exclusive end).
	StartLine int
	EndLine   int

	// Confidence is the detector's confidence in this region.
	Confidence float64
}

// TableCell is one cell of an extracted table.
// (RowIndex, ColIndex) is unique within a table.
type TableCell struct {
	RowIndex   int     `json:"row_index"`
	ColIndex   int     `json:"col_index"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TableRow is one ordered row of cells.
type TableRow struct {
	Cells      []TableCell `json:"cells"`
	IsHeader   bool        `json:"is_header"`
	Confidence float64     `json:"confidence"`
}

// TableColumn describes one inferred column.
type TableColumn struct {
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
}

// TableMetadata carries extraction context for a table.
type TableMetadata struct {
	PageCount      int           `json:"page_count"`
	ExtractionTime time.Duration `json:"extraction_time"`
	ModelVersion   string        `json:"model_version"`
}

// TableStructure is one extracted rows-by-columns grid.
type TableStructure struct {
	Rows       []TableRow       `json:"rows"`
	Columns    []TableColumn    `json:"columns"`
	Metadata   TableMetadata    `json:"metadata"`
	Confidence float64          `json:"confidence"`
	Method     ExtractionMethod `json:"extraction_method"`
}

// BoundingBox locates a line item on the page, when known.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LineItem is one table row interpreted as a financial line.
//
// A LineItem is only ever created with a non-empty Description and a
// positive TotalAmount; rows failing either condition are dropped during
// derivation. Zero values in Quantity, UnitPrice, VATRate and VATAmount
// mean "not present". LineItems are immutable after creation; merging
// produces consensus objects, it never mutates the inputs.
type LineItem struct {
	Description string       `json:"description"`
	Quantity    float64      `json:"quantity,omitempty"`
	UnitPrice   float64      `json:"unit_price,omitempty"`
	TotalAmount float64      `json:"total_amount"`
	VATRate     float64      `json:"vat_rate,omitempty"`
	VATAmount   float64      `json:"vat_amount,omitempty"`
	Category    string       `json:"category"`
	Confidence  float64      `json:"confidence"`
	RowIndex    int          `json:"row_index"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`

	// Source tags which extraction attempt produced this item. Consumed
	// by consensus provenance.
	Source string `json:"source,omitempty"`
}

// TableExtractionResult is the aggregate output of one extraction call.
type TableExtractionResult struct {
	Success        bool             `json:"success"`
	Tables         []TableStructure `json:"tables"`
	LineItems      []LineItem       `json:"line_items"`
	TotalTables    int              `json:"total_tables"`
	TotalLineItems int              `json:"total_line_items"`
	ProcessingTime time.Duration    `json:"processing_time"`
	FallbackUsed   bool             `json:"fallback_used"`
	Error          string           `json:"error,omitempty"`
}

// RegionDetector finds table regions in a document. The model-backed
// implementation wraps an external vision service; nil detectors are valid
// and select the heuristic path.
type RegionDetector interface {
	DetectRegions(ctx context.Context, data []byte, text string) ([]TableRegion, error)
}

// StructureExtractor extracts a TableStructure from one detected region.
type StructureExtractor interface {
	ExtractStructure(ctx context.Context, data []byte, text string, region TableRegion) (*TableStructure, error)
}
