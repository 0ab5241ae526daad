package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreText_SyntheticTableBlock(t *testing.T) {
	// 2 header-keyword lines, 3 money-pattern lines, 4 consecutive
	// tab-aligned lines: 2*2 + 3*1 + 3 + 3 bonus + 1 currency >= 8.
	text := "Description\tQuantity\tPrice\n" +
		"Total\tAmount\tVAT\n" +
		"Widget\t2\t10.00\n" +
		"Gadget\t1\t25.50\n" +
		"Sum\t3\t€35,50\n"

	r := ScoreText(text)

	assert.GreaterOrEqual(t, r.Score, 8)
	assert.Equal(t, 0.9, r.Confidence)
	assert.True(t, r.SuggestsTables)
}

func TestScoreText_PlainProse(t *testing.T) {
	text := "Dear customer,\nthank you for choosing our company.\nBest regards,\nthe team\n"

	r := ScoreText(text)

	assert.Less(t, r.Score, 3)
	assert.Equal(t, 0.3, r.Confidence)
	assert.False(t, r.SuggestsTables)
}

func TestScoreText_ConfidenceBuckets(t *testing.T) {
	// One money line + currency + one header keyword line: 1+1+2+3 bonus = 7.
	mid := ScoreText("total due\npay 12.00 €\n")
	assert.Equal(t, 7, mid.Score)
	assert.Equal(t, 0.7, mid.Confidence)
	assert.True(t, mid.SuggestsTables)

	// Money line + currency only: score 2.
	low := ScoreText("pay 12.00 €\n")
	assert.Equal(t, 2, low.Score)
	assert.Equal(t, 0.3, low.Confidence)
}

func TestScoreText_TableCountCap(t *testing.T) {
	text := ""
	for i := 0; i < 10; i++ {
		text += "Total\t10.00\n"
	}
	r := ScoreText(text)
	assert.Equal(t, 3, r.EstimatedTableCount)
}

func TestScoreText_AlignmentBonusOnce(t *testing.T) {
	// 4 consecutive aligned lines score the +3 bonus exactly once.
	aligned := "a\tb\nc\td\ne\tf\ng\th\n"
	r := ScoreText(aligned)
	assert.Equal(t, 3, r.Score)
	assert.True(t, r.HasAlignment)
}
