package prioritize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywordNumber(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		keyword string
		want    float64
	}{
		{
			name:    "plus-prefixed count",
			text:    "+300 clicks/month expected",
			keyword: "click",
			want:    300,
		},
		{
			name:    "thousands separator",
			text:    "est. 1,500 clicks from page two keywords",
			keyword: "click",
			want:    1500,
		},
		{
			name:    "keyword matches as a prefix",
			text:    "+22 conversions at current rates",
			keyword: "conversion",
			want:    22,
		},
		{
			name:    "case insensitive",
			text:    "+40 Clicks",
			keyword: "click",
			want:    40,
		},
		{
			name:    "first occurrence wins",
			text:    "+100 clicks now, +900 clicks later",
			keyword: "click",
			want:    100,
		},
		{
			name:    "number attached to other keyword is ignored",
			text:    "+300 clicks, +22 conversions",
			keyword: "impression",
			want:    0,
		},
		{
			name:    "bare keyword without a number",
			text:    "more clicks over time",
			keyword: "click",
			want:    0,
		},
		{
			name:    "empty text",
			text:    "",
			keyword: "click",
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ExtractKeywordNumber(tt.text, tt.keyword), 1e-9)
		})
	}
}

func TestExtractDollarAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "plain amount", text: "worth $8,800 in revenue", want: 8800},
		{name: "k suffix expands to thousands", text: "around $15k annually", want: 15000},
		{name: "uppercase suffix", text: "$2K upside", want: 2000},
		{name: "separator and no suffix", text: "$15,000 additional revenue", want: 15000},
		{name: "no dollar amount", text: "significant revenue upside", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ExtractDollarAmount(tt.text), 1e-9)
		})
	}
}

func TestStripQualifier(t *testing.T) {
	assert.Equal(t, "Low", stripQualifier("Low (5-10h)"))
	assert.Equal(t, "High", stripQualifier("High (85%)"))
	assert.Equal(t, "Medium", stripQualifier("Medium"))
	assert.Equal(t, "", stripQualifier(""))
}
