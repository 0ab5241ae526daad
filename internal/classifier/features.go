package classifier

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/pdftext"
)

// FileMetadata is the caller-supplied context for feature extraction.
type FileMetadata struct {
	Filename string
	MimeType string
}

var (
	alignmentPattern = regexp.MustCompile(`\t| {3,}`)
	wordPattern      = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// densityKeywords are the financial keywords tracked per document.
var densityKeywords = []string{
	"invoice", "fatura", "receipt", "recibo", "total", "vat", "iva",
	"credit", "debit", "contribuinte",
}

// portugueseMarkers identify Portuguese financial documents.
var portugueseMarkers = []string{"fatura", "recibo", "iva", "contribuinte", "pagamento"}

// ExtractDocumentFeatures derives routing features from document bytes.
//
// Best-effort: each sub-feature degrades to a neutral default instead of
// failing the whole call. All ratio features land in [0,1];
// DocumentLength is the raw byte count.
func (c *Classifier) ExtractDocumentFeatures(data []byte, meta FileMetadata) DocumentFeatures {
	features := DocumentFeatures{
		DocumentLength: len(data),
		FileType:       detectFileType(data, meta),
		KeywordDensity: map[string]float64{},
		Language:       "en",
		Confidence:     0.5,
	}

	text, err := pdftext.Extract(data)
	if err != nil {
		// Image-only or unreadable content: the vision signal carries it.
		features.ImageDensity = 1.0
		c.logger.Debug("feature extraction found no text layer", zap.Error(err))
		return features
	}

	features.Confidence = 0.9
	features.OCRQuality = ocrQuality(text)
	features.ImageDensity = imageDensity(data, text)
	features.TableDensity = tableDensity(text)
	features.TextComplexity = textComplexity(text)
	features.KeywordDensity = keywordDensity(text)
	features.HasStructuredData = features.TableDensity > 0.3 || strings.Contains(text, ";")
	features.Language = detectLanguage(text)
	return features
}

func detectFileType(data []byte, meta FileMetadata) string {
	switch {
	case pdftext.IsPDF(data):
		return "pdf"
	case bytes.HasPrefix(data, []byte{0xff, 0xd8}) || bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return "image"
	case strings.HasPrefix(meta.MimeType, "image/"):
		return "image"
	case strings.HasPrefix(meta.MimeType, "text/"):
		return "text"
	default:
		return "unknown"
	}
}

// ocrQuality is the fraction of letters, digits and spaces in the text.
// Garbled OCR output carries a high share of symbols and control bytes.
func ocrQuality(text string) float64 {
	if text == "" {
		return 0
	}
	clean := 0
	total := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(".,:-€$£%/", r) {
			clean++
		}
	}
	return float64(clean) / float64(total)
}

func imageDensity(data []byte, text string) float64 {
	if len(data) == 0 {
		return 0
	}
	ratio := 1.0 - float64(len(text)*4)/float64(len(data))
	return clamp01(ratio)
}

// tableDensity is the fraction of non-empty lines with tab or multi-space
// alignment.
func tableDensity(text string) float64 {
	lines := strings.Split(text, "\n")
	total := 0
	aligned := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if alignmentPattern.MatchString(line) {
			aligned++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(aligned) / float64(total)
}

// textComplexity is type-token ratio: distinct words over total words.
func textComplexity(text string) float64 {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return 0
	}
	distinct := map[string]struct{}{}
	for _, w := range words {
		distinct[w] = struct{}{}
	}
	return clamp01(float64(len(distinct)) / float64(len(words)))
}

func keywordDensity(text string) map[string]float64 {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	density := map[string]float64{}
	if len(words) == 0 {
		return density
	}
	counts := map[string]int{}
	for _, w := range words {
		counts[w]++
	}
	for _, kw := range densityKeywords {
		if counts[kw] > 0 {
			density[kw] = float64(counts[kw]) / float64(len(words))
		}
	}
	return density
}

func detectLanguage(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range portugueseMarkers {
		if strings.Contains(lower, marker) {
			return "pt"
		}
	}
	return "en"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
