package tableparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTable(headers []string, rows [][]string) *TableStructure {
	table := &TableStructure{Confidence: 0.8, Method: MethodFallbackHeuristic}

	header := TableRow{IsHeader: true, Confidence: 0.8}
	for col, h := range headers {
		header.Cells = append(header.Cells, TableCell{RowIndex: 0, ColIndex: col, Text: h})
		table.Columns = append(table.Columns, TableColumn{Index: col, Name: h, DataType: DataTypeText})
	}
	table.Rows = append(table.Rows, header)

	for i, cells := range rows {
		row := TableRow{Confidence: 0.8}
		for col, text := range cells {
			row.Cells = append(row.Cells, TableCell{RowIndex: i + 1, ColIndex: col, Text: text})
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		raw   string
		want  float64
		valid bool
	}{
		{"€1,500.00", 1500.00, true},
		{"1.500,00 €", 1500.00, true},
		{"150.00", 150.00, true},
		{"10", 10, true},
		{"23%", 23, true},
		{"$ 42,50", 42.50, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumeric(tt.raw)
		assert.Equal(t, tt.valid, ok, "raw=%q", tt.raw)
		if tt.valid {
			assert.InDelta(t, tt.want, got, 1e-9, "raw=%q", tt.raw)
		}
	}
}

func TestDeriveLineItems_ValidityInvariant(t *testing.T) {
	table := makeTable(
		[]string{"Description", "Quantity", "Unit Price", "Total"},
		[][]string{
			{"Consulting Services", "10", "€150.00", "€1,500.00"},
			{"Free sample", "1", "0.00", "0.00"}, // totalAmount = 0: dropped
			{"", "2", "5.00", "10.00"},           // empty description: dropped
			{"Printer toner", "3", "20.00", "60.00"},
		},
	)

	items := DeriveLineItems(table, "test")
	require.Len(t, items, 2)
	assert.Equal(t, "Consulting Services", items[0].Description)
	assert.InDelta(t, 1500.00, items[0].TotalAmount, 1e-6)
	assert.Equal(t, "Services", items[0].Category)
	assert.Equal(t, "Printer toner", items[1].Description)
}

func TestDeriveLineItems_VATDerivation(t *testing.T) {
	table := makeTable(
		[]string{"Description", "Total", "VAT"},
		[][]string{{"Hosting subscription", "100.00", "23%"}},
	)

	items := DeriveLineItems(table, "test")
	require.Len(t, items, 1)
	assert.InDelta(t, 23.0, items[0].VATRate, 1e-6)
	assert.InDelta(t, 100.0*23.0/100.0, items[0].VATAmount, 1e-6)
}

func TestDeriveLineItems_HeaderExcluded(t *testing.T) {
	table := makeTable(
		[]string{"Description", "Total"},
		[][]string{{"Office paper", "12.00"}},
	)

	items := DeriveLineItems(table, "test")
	require.Len(t, items, 1)
	assert.Equal(t, "Office Supplies", items[0].Category)
}

func TestInferCategory_LadderPriority(t *testing.T) {
	// "software support service" matches Services before Software.
	assert.Equal(t, "Services", inferCategory("Software support service"))
	assert.Equal(t, "Software", inferCategory("Annual SaaS license"))
	assert.Equal(t, "Hardware", inferCategory("Laptop Dell XPS"))
	assert.Equal(t, "Travel", inferCategory("Hotel Lisboa 2 nights"))
	assert.Equal(t, "Other", inferCategory("Miscellaneous"))
}

func TestClassifyColumn(t *testing.T) {
	assert.Equal(t, roleDescription, classifyColumn("Item Description"))
	assert.Equal(t, roleUnitPrice, classifyColumn("Unit Price"))
	assert.Equal(t, roleTotal, classifyColumn("Total"))
	assert.Equal(t, roleTotal, classifyColumn("Amount"))
	assert.Equal(t, roleQuantity, classifyColumn("Qty"))
	assert.Equal(t, roleVAT, classifyColumn("VAT %"))
	assert.Equal(t, roleNone, classifyColumn("Notes"))
}
