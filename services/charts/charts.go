package charts

import (
	"math"
	"time"

	"github.com/kwanifi/ratewatch/dmodels"
)

const (
	DefaultMaxPoints = 24
	MinPadding       = 0.001
	paddingRatio     = 0.1
	labelLayout      = "15:04"
)

type Series struct {
	Labels   []string
	Values   []float64
	YMin     float64
	YMax     float64
	YPadding float64
}

// AxisMin is the lower bound a chart should use for the value axis.
func (s Series) AxisMin() float64 {
	return s.YMin - s.YPadding
}

func (s Series) AxisMax() float64 {
	return s.YMax + s.YPadding
}

// ToChartSeries stride-samples series down to roughly maxPoints points. Axis
// bounds always come from the full series so decimation never hides extremes.
// A maxPoints <= 0 disables downsampling; a nil loc means time.Local.
func ToChartSeries(series dmodels.Series, maxPoints int, loc *time.Location) Series {
	out := Series{
		Labels:   []string{},
		Values:   []float64{},
		YPadding: MinPadding,
	}
	if len(series) == 0 {
		return out
	}
	if loc == nil {
		loc = time.Local
	}

	stride := 1
	if maxPoints > 0 && len(series) > maxPoints {
		stride = len(series) / maxPoints
	}
	n := (len(series) + stride - 1) / stride
	out.Labels = make([]string, 0, n)
	out.Values = make([]float64, 0, n)
	for i := 0; i < len(series); i += stride {
		out.Labels = append(out.Labels, Label(series[i].Timestamp, loc))
		out.Values = append(out.Values, series[i].Rate)
	}

	out.YMin, out.YMax = Extrema(series)
	out.YPadding = math.Max((out.YMax-out.YMin)*paddingRatio, MinPadding)
	return out
}

// Extrema returns the min and max rate; both are 0 for an empty series.
func Extrema(series dmodels.Series) (min, max float64) {
	if len(series) == 0 {
		return 0, 0
	}
	min, max = series[0].Rate, series[0].Rate
	for _, s := range series[1:] {
		if s.Rate < min {
			min = s.Rate
		}
		if s.Rate > max {
			max = s.Rate
		}
	}
	return min, max
}

// Label renders a unix timestamp as 24-hour HH:MM in loc.
func Label(ts int64, loc *time.Location) string {
	return time.Unix(ts, 0).In(loc).Format(labelLayout)
}
