package stats

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/kwanifi/ratewatch/dmodels"
	"github.com/kwanifi/ratewatch/services/charts"
)

// Unavailable marks a value that cannot be derived from the series.
const Unavailable = "N/A"

const rateDigits = 6

type Stats struct {
	Latest      string
	Min         string
	Max         string
	TotalSupply string
}

// Compute derives display scalars from the active series. TotalSupply comes
// from the most recent sample that reports one.
func Compute(active dmodels.Series) Stats {
	st := Stats{
		Latest:      Unavailable,
		Min:         Unavailable,
		Max:         Unavailable,
		TotalSupply: Unavailable,
	}
	last, ok := active.Last()
	if !ok {
		return st
	}
	min, max := charts.Extrema(active)
	st.Latest = FormatRate(last.Rate)
	st.Min = FormatRate(min)
	st.Max = FormatRate(max)
	if supply, ok := LatestSupply(active); ok {
		st.TotalSupply = FormatSupply(supply)
	}
	return st
}

func LatestSupply(series dmodels.Series) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].TotalSupply != nil {
			return *series[i].TotalSupply, true
		}
	}
	return 0, false
}

// FormatRate renders a rate with exactly six fractional digits.
func FormatRate(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable
	}
	return decimal.NewFromFloat(v).StringFixed(rateDigits)
}

var (
	thousand = decimal.New(1, 3)
	million  = decimal.New(1, 6)
	billion  = decimal.New(1, 9)
)

// FormatSupply uses K/M/B suffixes with two digits for large values and six
// digits otherwise.
func FormatSupply(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable
	}
	d := decimal.NewFromFloat(v)
	abs := d.Abs()
	switch {
	case abs.GreaterThanOrEqual(billion):
		return d.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(2) + "K"
	default:
		return d.StringFixed(rateDigits)
	}
}
