// Package derive turns raw movement counts and line metrics into the
// aggregate and normalized CFP metrics.
package derive

import (
	"math"

	"github.com/huangsam/cfpscan/schema"
)

// DefaultPrecision is the number of decimal places for derived ratios.
const DefaultPrecision = 2

// WeightTable supplies the ordered categories and their multipliers.
type WeightTable interface {
	Categories() []schema.MovementCategory
	WeightOf(cat schema.MovementCategory) float64
}

// Total sums count * weight over the table's categories. The sum is exact,
// with no rounding applied.
func Total(counts schema.MovementCounts, table WeightTable) float64 {
	total := 0.0
	for _, cat := range table.Categories() {
		total += float64(counts[cat]) * table.WeightOf(cat)
	}
	return total
}

// Derive computes cfp_total, eloc_per_cfp and cfp_per_kloc, each rounded to
// precision decimal places. The ratios use the rounded total so a record is
// consistent with itself. A zero denominator yields 0 for the affected ratio.
func Derive(counts schema.MovementCounts, lines schema.LineMetrics, table WeightTable, precision int) schema.DerivedMetrics {
	total := Round(Total(counts, table), precision)
	out := schema.DerivedMetrics{CFPTotal: total}
	if total > 0 {
		out.ELOCPerCFP = Round(float64(lines.TotalELOC)/total, precision)
	}
	if lines.Code > 0 {
		out.CFPPerKLOC = Round(total/float64(lines.Code)*1000, precision)
	}
	return out
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	pow := math.Pow(10, float64(precision))
	return math.Round(v*pow) / pow
}
