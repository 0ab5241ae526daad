package pdftext

import (
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainText(t *testing.T) {
	text, err := Extract([]byte("  Fatura 2026/001\nTotal: 1.500,00 €  "))
	require.NoError(t, err)
	assert.Equal(t, "Fatura 2026/001\nTotal: 1.500,00 €", text)
}

func TestExtract_Empty(t *testing.T) {
	_, err := Extract(nil)
	assert.ErrorIs(t, err, ErrNoText)

	_, err = Extract([]byte("   \n  "))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtract_BinaryNonPDF(t *testing.T) {
	_, err := Extract([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtract_MalformedPDF(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.7 not really a pdf"))
	assert.Error(t, err)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.4\n")))
	assert.False(t, IsPDF([]byte("plain text")))
}

func TestExtractReader(t *testing.T) {
	text, err := ExtractReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestJoinRow_ColumnGapsBecomeTabs(t *testing.T) {
	row := pdf.TextHorizontal{
		{S: "Servico", X: 10, W: 40, FontSize: 10},
		{S: "de", X: 53, W: 12, FontSize: 10},
		{S: "consultoria", X: 68, W: 60, FontSize: 10},
		{S: "2", X: 200, W: 6, FontSize: 10},
		{S: "150,00", X: 280, W: 32, FontSize: 10},
	}

	assert.Equal(t, "Servico de consultoria\t2\t150,00", joinRow(row))
}

func TestJoinRow_AdjacentWordsKeepSpaces(t *testing.T) {
	row := pdf.TextHorizontal{
		{S: "Fatura", X: 10, W: 30, FontSize: 10},
		{S: "FT", X: 44, W: 12, FontSize: 10},
		{S: "2026/001", X: 60, W: 40, FontSize: 10},
	}

	assert.Equal(t, "Fatura FT 2026/001", joinRow(row))
}

func TestJoinRow_ZeroFontSizeUsesDefaultEm(t *testing.T) {
	row := pdf.TextHorizontal{
		{S: "Total", X: 10, W: 25},
		{S: "1.500,00", X: 120, W: 45},
	}

	assert.Equal(t, "Total\t1.500,00", joinRow(row))
}
