package consensus

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/tableparse"
)

// fallbackDiscount scales a group's confidence when resolution fails and
// the first item is used verbatim.
const fallbackDiscount = 0.8

var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
var whitespacePattern = regexp.MustCompile(`\s+`)

var errNoMergeableAmount = errors.New("no positive total amount in group")

// sourcedItem pairs a line item with the tag of the attempt it came from.
type sourcedItem struct {
	item   tableparse.LineItem
	source string
}

// normalizeDescription canonicalizes a description for grouping:
// lowercase, strip non-word characters, collapse whitespace.
func normalizeDescription(desc string) string {
	s := strings.ToLower(desc)
	s = nonWordPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// buildLineItemConsensus merges the line items of all extraction attempts.
// Items are grouped by normalized description; each group resolves to one
// LineItemConsensus.
func buildLineItemConsensus(results []ExtractionResult, logger *zap.Logger) []LineItemConsensus {
	groups := map[string][]sourcedItem{}
	var order []string
	for _, result := range results {
		for _, item := range result.LineItems {
			source := item.Source
			if source == "" {
				source = result.Model
			}
			key := normalizeDescription(item.Description)
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], sourcedItem{item: item, source: source})
		}
	}

	merged := make([]LineItemConsensus, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			merged = append(merged, passThrough(group[0]))
			continue
		}
		resolved, err := mergeGroup(group)
		if err != nil {
			logger.Warn("line item group resolution failed, using first item",
				zap.String("description", group[0].item.Description),
				zap.Error(err))
			fallback := passThrough(group[0])
			fallback.Confidence *= fallbackDiscount
			fallback.Sources = []string{"fallback_consensus"}
			merged = append(merged, fallback)
			continue
		}
		merged = append(merged, resolved)
	}
	return merged
}

// passThrough converts a lone item without reconciliation.
func passThrough(si sourcedItem) LineItemConsensus {
	return LineItemConsensus{
		Description: si.item.Description,
		Quantity:    si.item.Quantity,
		UnitPrice:   si.item.UnitPrice,
		TotalAmount: si.item.TotalAmount,
		VATRate:     si.item.VATRate,
		VATAmount:   si.item.VATAmount,
		Category:    si.item.Category,
		Confidence:  si.item.Confidence,
		Sources:     []string{"single_extraction"},
	}
}

// mergeGroup reconciles 2+ items describing the same line. Numeric fields
// resolve to the median of positive values, category to the mode,
// confidence to the mean. The merged VAT amount is recomputed from the
// merged rate and total.
func mergeGroup(group []sourcedItem) (LineItemConsensus, error) {
	total := medianPositive(collect(group, func(i tableparse.LineItem) float64 { return i.TotalAmount }))
	if total <= 0 {
		return LineItemConsensus{}, errNoMergeableAmount
	}

	out := LineItemConsensus{
		Description: group[0].item.Description,
		Quantity:    medianPositive(collect(group, func(i tableparse.LineItem) float64 { return i.Quantity })),
		UnitPrice:   medianPositive(collect(group, func(i tableparse.LineItem) float64 { return i.UnitPrice })),
		TotalAmount: total,
		VATRate:     medianPositive(collect(group, func(i tableparse.LineItem) float64 { return i.VATRate })),
		Category:    modeCategory(group),
		Sources:     make([]string, 0, len(group)),
	}
	if out.VATRate > 0 {
		out.VATAmount = out.TotalAmount * out.VATRate / 100
	}

	sum := 0.0
	for _, si := range group {
		sum += si.item.Confidence
		out.Sources = append(out.Sources, si.source)
	}
	out.Confidence = sum / float64(len(group))
	return out, nil
}

func collect(group []sourcedItem, get func(tableparse.LineItem) float64) []float64 {
	values := make([]float64, 0, len(group))
	for _, si := range group {
		values = append(values, get(si.item))
	}
	return values
}

// medianPositive is the median of the positive values, 0 when none are
// positive. The median resists one bad extractor skewing the merge.
func medianPositive(values []float64) float64 {
	positive := values[:0:0]
	for _, v := range values {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) == 0 {
		return 0
	}
	sort.Float64s(positive)
	mid := len(positive) / 2
	if len(positive)%2 == 1 {
		return positive[mid]
	}
	return (positive[mid-1] + positive[mid]) / 2
}

// modeCategory is the most frequent category in the group; ties resolve
// to the earliest item's category.
func modeCategory(group []sourcedItem) string {
	counts := map[string]int{}
	best := group[0].item.Category
	bestCount := 0
	for _, si := range group {
		counts[si.item.Category]++
		if counts[si.item.Category] > bestCount {
			best = si.item.Category
			bestCount = counts[si.item.Category]
		}
	}
	return best
}
