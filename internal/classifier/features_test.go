package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractDocumentFeatures_PortugueseInvoice(t *testing.T) {
	c := New(zap.NewNop())

	text := strings.Join([]string{
		"Fatura FT 2026/118",
		"Contribuinte: 501234567",
		"Descricao\tQtd\tPreco\tTotal",
		"Servico de consultoria\t10\t150,00\t1.500,00",
		"Licenca de software\t2\t49,90\t99,80",
		"Total com IVA: 1.967,76 EUR",
	}, "\n")

	features := c.ExtractDocumentFeatures([]byte(text), FileMetadata{
		Filename: "fatura-118.txt",
		MimeType: "text/plain",
	})

	assert.Equal(t, len(text), features.DocumentLength)
	assert.Equal(t, "pt", features.Language)
	assert.Greater(t, features.KeywordDensity["fatura"], 0.0)
	assert.Greater(t, features.KeywordDensity["iva"], 0.0)
	assert.Greater(t, features.TableDensity, 0.3)
	assert.True(t, features.HasStructuredData)
	assert.Greater(t, features.OCRQuality, 0.8)
	assert.InDelta(t, 0.9, features.Confidence, 1e-9)
	assert.GreaterOrEqual(t, features.TextComplexity, 0.0)
	assert.LessOrEqual(t, features.TextComplexity, 1.0)
}

func TestExtractDocumentFeatures_BinaryFallsBackToImageDensity(t *testing.T) {
	c := New(zap.NewNop())

	data := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x01, 0x02, 0x03}
	features := c.ExtractDocumentFeatures(data, FileMetadata{Filename: "scan.jpg"})

	assert.Equal(t, "image", features.FileType)
	assert.InDelta(t, 1.0, features.ImageDensity, 1e-9)
	assert.InDelta(t, 0.5, features.Confidence, 1e-9)
	assert.Empty(t, features.KeywordDensity)
}

func TestExtractDocumentFeatures_EnglishPlainText(t *testing.T) {
	c := New(zap.NewNop())

	text := "Quarterly report with narrative prose and no tables at all. " +
		"The quick brown fox jumps over the lazy dog."
	features := c.ExtractDocumentFeatures([]byte(text), FileMetadata{MimeType: "text/plain"})

	require.Equal(t, "en", features.Language)
	assert.Zero(t, features.TableDensity)
	assert.False(t, features.HasStructuredData)
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, "pdf", detectFileType([]byte("%PDF-1.7 rest"), FileMetadata{}))
	assert.Equal(t, "image", detectFileType([]byte{0x89, 'P', 'N', 'G'}, FileMetadata{}))
	assert.Equal(t, "image", detectFileType([]byte("x"), FileMetadata{MimeType: "image/tiff"}))
	assert.Equal(t, "text", detectFileType([]byte("x"), FileMetadata{MimeType: "text/csv"}))
	assert.Equal(t, "unknown", detectFileType([]byte("x"), FileMetadata{}))
}
