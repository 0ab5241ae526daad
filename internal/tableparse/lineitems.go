package tableparse

import (
	"strconv"
	"strings"
)

// columnRole identifies which line-item field a table column feeds.
type columnRole int

const (
	roleNone columnRole = iota
	roleDescription
	roleQuantity
	roleUnitPrice
	roleTotal
	roleVAT
)

// classifyColumn maps a column name to a line-item field by case-insensitive
// substring match. Total wins over quantity when both "amount" and an
// explicit total keyword are candidates, so classification order matters:
// description, total, quantity, unit price, vat.
func classifyColumn(name string) columnRole {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "description") || strings.Contains(lower, "item") || strings.Contains(lower, "product"):
		return roleDescription
	case strings.Contains(lower, "unit") && strings.Contains(lower, "price"):
		return roleUnitPrice
	case strings.Contains(lower, "total"):
		return roleTotal
	case strings.Contains(lower, "quantity") || strings.Contains(lower, "qty"):
		return roleQuantity
	case strings.Contains(lower, "vat") || strings.Contains(lower, "tax"):
		return roleVAT
	case strings.Contains(lower, "amount"):
		return roleTotal
	}
	return roleNone
}

// parseNumeric parses a money-or-quantity cell. Everything except digits,
// '.' and ',' is stripped, then ',' normalizes to '.'. Returns ok=false for
// unparsable values; callers skip the field rather than defaulting it.
func parseNumeric(raw string) (float64, bool) {
	var sb strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()
	if cleaned == "" {
		return 0, false
	}

	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	// Multiple separators mean thousands markers; only the last one is the
	// decimal point. Handles both 1.500,00 and 1,500.00.
	if strings.Count(cleaned, ".") > 1 {
		last := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// categoryLadder is the fixed category keyword priority order.
var categoryLadder = []struct {
	category string
	keywords []string
}{
	{"Services", []string{"service", "consult", "support", "maintenance", "labor", "labour"}},
	{"Software", []string{"software", "license", "licence", "subscription", "saas", "hosting"}},
	{"Hardware", []string{"hardware", "computer", "laptop", "server", "equipment", "printer"}},
	{"Travel", []string{"travel", "hotel", "flight", "fuel", "toll", "mileage"}},
	{"Office Supplies", []string{"paper", "pen", "stationery", "office", "supplies", "toner"}},
}

// inferCategory tests the category ladder in priority order against the
// lower-cased description.
func inferCategory(description string) string {
	lower := strings.ToLower(description)
	for _, rung := range categoryLadder {
		for _, kw := range rung.keywords {
			if strings.Contains(lower, kw) {
				return rung.category
			}
		}
	}
	return "Other"
}

// DeriveLineItems converts a table's non-header rows into line items.
//
// A line item is emitted only when its description is non-empty and its
// total amount is positive; other rows are discarded silently. VAT amount
// is computed from the rate when a rate is present and no amount was
// parsed directly.
func DeriveLineItems(table *TableStructure, source string) []LineItem {
	roles := make(map[int]columnRole, len(table.Columns))
	for _, col := range table.Columns {
		if role := classifyColumn(col.Name); role != roleNone {
			if _, taken := roles[col.Index]; !taken {
				roles[col.Index] = role
			}
		}
	}

	var items []LineItem
	for _, row := range table.Rows {
		if row.IsHeader {
			continue
		}

		var item LineItem
		for _, cell := range row.Cells {
			switch roles[cell.ColIndex] {
			case roleDescription:
				item.Description = strings.TrimSpace(cell.Text)
			case roleQuantity:
				if v, ok := parseNumeric(cell.Text); ok {
					item.Quantity = v
				}
			case roleUnitPrice:
				if v, ok := parseNumeric(cell.Text); ok {
					item.UnitPrice = v
				}
			case roleTotal:
				if v, ok := parseNumeric(cell.Text); ok {
					item.TotalAmount = v
				}
			case roleVAT:
				if v, ok := parseNumeric(cell.Text); ok {
					item.VATRate = v
				}
			}
		}

		if item.Description == "" || item.TotalAmount <= 0 {
			continue
		}

		// VAT amount is computed from the rate, never parsed.
		if item.VATRate > 0 {
			item.VATAmount = item.TotalAmount * item.VATRate / 100
		}

		item.Category = inferCategory(item.Description)
		item.Confidence = row.Confidence
		if item.Confidence == 0 {
			item.Confidence = table.Confidence
		}
		item.RowIndex = firstRowIndex(row)
		item.Source = source
		items = append(items, item)
	}
	return items
}

func firstRowIndex(row TableRow) int {
	if len(row.Cells) == 0 {
		return 0
	}
	return row.Cells[0].RowIndex
}
