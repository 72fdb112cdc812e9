package prioritize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// dollarPattern matches a dollar sign followed by digit groups with
// optional thousands separators and an optional k/K suffix,
// e.g. "$15,000" or "$15k".
var dollarPattern = regexp.MustCompile(`\$([0-9][0-9,]*)\s*([kK])?`)

// ExtractKeywordNumber pulls the first number immediately preceding the
// given keyword out of free text. The grammar is an optional plus sign,
// then digit groups with optional thousands separators, then optional
// whitespace, then the keyword (matched case-insensitively as a prefix,
// so "click" also matches "clicks"). Returns 0 when nothing matches.
func ExtractKeywordNumber(text, keyword string) float64 {
	pattern := regexp.MustCompile(`(?i)\+?\s*([0-9][0-9,]*)\s*` + regexp.QuoteMeta(keyword))
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// ExtractDollarAmount pulls the first dollar amount out of free text,
// expanding a k suffix to thousands. Returns 0 when nothing matches.
func ExtractDollarAmount(text string) float64 {
	m := dollarPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	if m[2] != "" {
		d = d.Mul(decimal.NewFromInt(1000))
	}
	return d.InexactFloat64()
}
