package tableparse

import (
	"context"
	"regexp"
	"strings"
)

var (
	moneyPattern     = regexp.MustCompile(`\d+[.,]\d{2}`)
	alignmentPattern = regexp.MustCompile(`\t| {3,}`)
	datePattern      = regexp.MustCompile(`^\d{1,4}[-/．.]\d{1,2}[-/．.]\d{1,4}$`)
	percentPattern   = regexp.MustCompile(`^\d+[.,]?\d*\s*%$`)
)

var headerKeywords = []string{
	"description", "item", "product", "quantity", "price", "amount", "total", "vat", "tax",
}

// hasHeaderKeyword reports whether a line starts with a table header keyword.
func hasHeaderKeyword(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, kw := range headerKeywords {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}

// HeuristicDetector finds table regions from the text layer alone: runs of
// aligned or money-bearing lines, optionally opened by a header-keyword
// line.
type HeuristicDetector struct{}

// NewHeuristicDetector creates a text-layer region detector.
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{}
}

func (d *HeuristicDetector) DetectRegions(_ context.Context, _ []byte, text string) ([]TableRegion, error) {
	lines := strings.Split(text, "\n")

	var regions []TableRegion
	start := -1
	for i, line := range lines {
		tabular := alignmentPattern.MatchString(line) &&
			(moneyPattern.MatchString(line) || hasHeaderKeyword(line))
		switch {
		case tabular && start < 0:
			start = i
		case !tabular && start >= 0:
			if i-start >= 2 {
				regions = append(regions, TableRegion{StartLine: start, EndLine: i, Confidence: 0.6})
			}
			start = -1
		}
	}
	if start >= 0 && len(lines)-start >= 2 {
		regions = append(regions, TableRegion{StartLine: start, EndLine: len(lines), Confidence: 0.6})
	}
	return regions, nil
}

// HeuristicExtractor builds a TableStructure by splitting region lines on
// tabs or 3-or-more-space runs.
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates a text-layer structure extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

func (e *HeuristicExtractor) ExtractStructure(_ context.Context, _ []byte, text string, region TableRegion) (*TableStructure, error) {
	lines := strings.Split(text, "\n")
	if region.StartLine < 0 || region.StartLine >= len(lines) {
		return nil, nil
	}
	end := region.EndLine
	if end > len(lines) {
		end = len(lines)
	}

	table := &TableStructure{
		Method:     MethodFallbackHeuristic,
		Confidence: region.Confidence,
		Metadata:   TableMetadata{PageCount: 1, ModelVersion: "heuristic/v1"},
	}

	rowIndex := 0
	for i := region.StartLine; i < end; i++ {
		fields := splitRowFields(lines[i])
		if len(fields) < 2 {
			continue
		}

		row := TableRow{Confidence: region.Confidence}
		for col, field := range fields {
			row.Cells = append(row.Cells, TableCell{
				RowIndex:   rowIndex,
				ColIndex:   col,
				Text:       field,
				Confidence: region.Confidence,
			})
		}
		// The first keyword-bearing row of a region is its header.
		if rowIndex == 0 && hasHeaderKeyword(lines[i]) {
			row.IsHeader = true
		}
		table.Rows = append(table.Rows, row)
		rowIndex++
	}

	if len(table.Rows) == 0 {
		return nil, nil
	}

	table.Columns = inferColumns(table.Rows)
	return table, nil
}

// splitRowFields splits a table line into cell texts.
func splitRowFields(line string) []string {
	parts := alignmentPattern.Split(strings.TrimSpace(line), -1)
	fields := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// inferColumns names columns from the header row when present and infers
// each column's data type from its body cells.
func inferColumns(rows []TableRow) []TableColumn {
	colCount := 0
	for _, row := range rows {
		if len(row.Cells) > colCount {
			colCount = len(row.Cells)
		}
	}

	columns := make([]TableColumn, colCount)
	for i := range columns {
		columns[i] = TableColumn{Index: i, Name: "", DataType: DataTypeText}
	}

	for _, row := range rows {
		if !row.IsHeader {
			continue
		}
		for _, cell := range row.Cells {
			if cell.ColIndex < colCount {
				columns[cell.ColIndex].Name = cell.Text
			}
		}
	}

	for i := range columns {
		columns[i].DataType = inferColumnType(rows, i)
	}
	return columns
}

func inferColumnType(rows []TableRow, col int) DataType {
	counts := map[DataType]int{}
	total := 0
	for _, row := range rows {
		if row.IsHeader {
			continue
		}
		for _, cell := range row.Cells {
			if cell.ColIndex != col {
				continue
			}
			counts[cellDataType(cell.Text)]++
			total++
		}
	}
	if total == 0 {
		return DataTypeText
	}
	best := DataTypeText
	bestCount := 0
	for dt, c := range counts {
		if c > bestCount {
			best, bestCount = dt, c
		}
	}
	return best
}

func cellDataType(text string) DataType {
	trimmed := strings.TrimSpace(text)
	switch {
	case percentPattern.MatchString(trimmed):
		return DataTypePercentage
	case datePattern.MatchString(trimmed):
		return DataTypeDate
	case strings.ContainsAny(trimmed, "€$£") && moneyPattern.MatchString(trimmed):
		return DataTypeCurrency
	case moneyPattern.MatchString(trimmed):
		return DataTypeNumber
	default:
		if _, ok := parseNumeric(trimmed); ok && !strings.ContainsAny(trimmed, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			return DataTypeNumber
		}
		return DataTypeText
	}
}

var (
	_ RegionDetector     = (*HeuristicDetector)(nil)
	_ StructureExtractor = (*HeuristicExtractor)(nil)
)
