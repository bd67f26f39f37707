package handlers

import (
	"fmt"
	"math"
	"strings"
)

// formatCurrency renders a dollar amount with thousands separators, e.g.
// 12345.6 -> "$12,345.60".
func formatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	// Round to total cents before splitting, so a fractional part that
	// rounds up carries into the whole dollars.
	total := int64(math.Round(amount * 100))
	whole, cents := total/100, total%100

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), cents)
}
