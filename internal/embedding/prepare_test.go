package embedding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareText_SectionOrderAndAllowList(t *testing.T) {
	text := PrepareText(Content{
		Title:        "fatura-118.pdf",
		DocumentType: "invoice",
		OCRText:      "Fatura FT 2026/118 total 1.967,76 EUR",
		Metadata: map[string]interface{}{
			"vendor":    "Acme Corporation",
			"amount":    1967.76,
			"currency":  "EUR",
			"upload_ip": "10.0.0.1",
			"issuer":    nil,
		},
	})

	assert.Equal(t, "Title: fatura-118.pdf\n"+
		"Type: invoice\n"+
		"Content: Fatura FT 2026/118 total 1.967,76 EUR\n"+
		"Metadata: vendor: Acme Corporation, amount: 1967.76, currency: EUR", text)
}

func TestPrepareText_TruncatesLongContent(t *testing.T) {
	text := PrepareText(Content{OCRText: strings.Repeat("a", 5000)})

	assert.True(t, strings.HasSuffix(text, "..."))
	assert.Len(t, text, len("Content: ")+maxContentChars+len("..."))
}

func TestPrepareText_EmptyContent(t *testing.T) {
	assert.Empty(t, PrepareText(Content{}))
}

func TestCacheKey_Deterministic(t *testing.T) {
	content := Content{Title: "doc.pdf", OCRText: "some text"}
	a := CacheKey(PrepareText(content))
	b := CacheKey(PrepareText(content))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	other := CacheKey(PrepareText(Content{Title: "doc.pdf", OCRText: "other text"}))
	assert.NotEqual(t, a, other)
}

func TestCacheKey_IgnoresDisallowedMetadata(t *testing.T) {
	base := Content{Title: "doc.pdf", Metadata: map[string]interface{}{"vendor": "Acme"}}
	noisy := Content{Title: "doc.pdf", Metadata: map[string]interface{}{"vendor": "Acme", "request_id": "r-1"}}
	assert.Equal(t, CacheKey(PrepareText(base)), CacheKey(PrepareText(noisy)))
}
