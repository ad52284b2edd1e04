package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders amount for display: symbol, grouping and fixed places.
// Digits come from the decimal itself so large amounts stay exact.
func (t *Table) Format(amount decimal.Decimal, code string) (string, error) {
	c, err := t.Get(code)
	if err != nil {
		return "", err
	}
	rounded := amount.Round(c.Places)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	digits := rounded.StringFixed(c.Places)
	whole, frac, hasFrac := strings.Cut(digits, ".")
	out := sign + c.Symbol + groupThousands(whole)
	if hasFrac {
		out += "." + frac
	}
	return out, nil
}

func groupThousands(whole string) string {
	if len(whole) <= 3 {
		return whole
	}
	var b strings.Builder
	head := len(whole) % 3
	if head > 0 {
		b.WriteString(whole[:head])
	}
	for i := head; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(whole[i : i+3])
	}
	return b.String()
}
