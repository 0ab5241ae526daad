package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// maxContentChars bounds the OCR text included in prepared embedding
// input. Longer text is cut and marked with an ellipsis.
const maxContentChars = 4000

// metadataAllowList is the fixed set of metadata keys included in
// prepared text, in this order. Anything else is dropped so that
// volatile metadata cannot change the cache key.
var metadataAllowList = []string{"vendor", "issuer", "category", "description", "amount", "currency"}

// Content is the document material an embedding is generated from.
type Content struct {
	Title        string
	DocumentType string
	OCRText      string
	Metadata     map[string]interface{}
}

// PrepareText builds the canonical embedding input. The section order,
// truncation and metadata allow-list are fixed: prepared text doubles as
// the cache key input, so any change here invalidates every cached
// embedding.
func PrepareText(content Content) string {
	var parts []string
	if content.Title != "" {
		parts = append(parts, "Title: "+content.Title)
	}
	if content.DocumentType != "" {
		parts = append(parts, "Type: "+content.DocumentType)
	}
	if content.OCRText != "" {
		parts = append(parts, "Content: "+truncateChars(content.OCRText, maxContentChars))
	}
	if meta := prepareMetadata(content.Metadata); meta != "" {
		parts = append(parts, "Metadata: "+meta)
	}
	return strings.Join(parts, "\n")
}

func prepareMetadata(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return ""
	}
	var pairs []string
	for _, key := range metadataAllowList {
		value, ok := metadata[key]
		if !ok || value == nil {
			continue
		}
		pairs = append(pairs, fmt.Sprintf("%s: %v", key, value))
	}
	return strings.Join(pairs, ", ")
}

func truncateChars(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// CacheKey hashes prepared text into the embedding cache key.
func CacheKey(preparedText string) string {
	sum := sha256.Sum256([]byte(preparedText))
	return hex.EncodeToString(sum[:])
}
