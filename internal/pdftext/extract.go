// Package pdftext extracts plain text from document bytes.
//
// Extraction is deterministic: the same bytes always produce the same text.
// The layout router, table parser and classifier all derive their features
// from this output, so determinism here is what makes routing reproducible.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrNoText indicates the document contains no extractable text.
var ErrNoText = errors.New("no extractable text")

// pdfMagic is the PDF file header.
var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data starts with a PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Extract returns the plain text content of a document.
//
// PDFs go through the PDF text layer; other inputs pass through when they
// are valid UTF-8 (plain text uploads, pre-computed OCR output). Image-only
// content yields ErrNoText; callers treat that as "needs a vision path",
// not as a failure.
func Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoText
	}
	if IsPDF(data) {
		return extractPDF(data)
	}
	if utf8.Valid(data) {
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", ErrNoText
		}
		return text, nil
	}
	return "", ErrNoText
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}
		for _, row := range rows {
			sb.WriteString(joinRow(row.Content))
			sb.WriteString("\n")
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// defaultEmPoints stands in for the font size when a glyph carries none.
const defaultEmPoints = 12.0

// joinRow flattens one text row while keeping column structure visible:
// words separated by more than one em of horizontal whitespace are joined
// with a tab, adjacent words with a single space. Table cells in a PDF
// text layer only differ from prose by those wide gaps.
func joinRow(words pdf.TextHorizontal) string {
	var sb strings.Builder
	var prevEnd float64
	for i, word := range words {
		if i > 0 {
			if isColumnGap(prevEnd, word) {
				sb.WriteString("\t")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(word.S)
		prevEnd = word.X + word.W
	}
	return sb.String()
}

func isColumnGap(prevEnd float64, word pdf.Text) bool {
	em := word.FontSize
	if em <= 0 {
		em = defaultEmPoints
	}
	return word.X-prevEnd > em
}

// ExtractReader is a convenience wrapper over Extract for streamed input.
func ExtractReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return Extract(data)
}
