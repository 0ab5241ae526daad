// Package layout pre-classifies documents and routes them to the table or
// plain-text extraction pipeline.
package layout

import (
	"math"
	"regexp"
	"strings"
)

var (
	moneyPattern     = regexp.MustCompile(`\d+[.,]\d{2}`)
	alignmentPattern = regexp.MustCompile(`\t| {3,}`)
)

// headerKeywords open table header lines in scoring.
var headerKeywords = []string{
	"description", "item", "product", "quantity", "price", "amount", "total", "vat", "tax",
}

// HeuristicResult is the table-likelihood score of a text layer.
//
// The scoring rules are fixed: downstream behavior and tests depend on the
// exact arithmetic, so changes here are breaking.
type HeuristicResult struct {
	Score               int
	Confidence          float64
	SuggestsTables      bool
	EstimatedTableCount int

	HeaderKeywordLines int
	MoneyLines         int
	HasAlignment       bool
	HasCurrency        bool
}

// ScoreText scores a text block for table likelihood.
//
// Scoring: +2 per line starting with a header keyword; +1 per line with a
// money-like pattern; +3 once for 3+ consecutive tab/3-space aligned lines;
// +3 bonus when both header keywords and money patterns were seen; +1 when
// a currency symbol appears anywhere. Confidence buckets: score>=8 -> 0.9,
// >=5 -> 0.7, >=3 -> 0.5, else 0.3. Tables are suggested at score>=5 and
// the table count estimate is min(ceil(score/3), 3).
func ScoreText(text string) HeuristicResult {
	var r HeuristicResult
	lines := strings.Split(text, "\n")

	consecutiveAligned := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		for _, kw := range headerKeywords {
			if strings.HasPrefix(lower, kw) {
				r.HeaderKeywordLines++
				r.Score += 2
				break
			}
		}

		if moneyPattern.MatchString(line) {
			r.MoneyLines++
			r.Score++
		}

		if alignmentPattern.MatchString(line) && trimmed != "" {
			consecutiveAligned++
			if consecutiveAligned == 3 && !r.HasAlignment {
				r.HasAlignment = true
				r.Score += 3
			}
		} else {
			consecutiveAligned = 0
		}
	}

	if r.HeaderKeywordLines > 0 && r.MoneyLines > 0 {
		r.Score += 3
	}

	if strings.ContainsAny(text, "€$£") {
		r.HasCurrency = true
		r.Score++
	}

	switch {
	case r.Score >= 8:
		r.Confidence = 0.9
	case r.Score >= 5:
		r.Confidence = 0.7
	case r.Score >= 3:
		r.Confidence = 0.5
	default:
		r.Confidence = 0.3
	}

	r.SuggestsTables = r.Score >= 5
	count := int(math.Ceil(float64(r.Score) / 3))
	if count > 3 {
		count = 3
	}
	r.EstimatedTableCount = count
	return r
}
