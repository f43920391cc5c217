package smodels

import "github.com/kwanifi/ratewatch/dmodels"

type (
	ChartSeries struct {
		Mode     string    `json:"mode"`
		Labels   []string  `json:"labels"`
		Values   []float64 `json:"values"`
		YMin     float64   `json:"y_min"`
		YMax     float64   `json:"y_max"`
		YPadding float64   `json:"y_padding"`
		AxisMin  float64   `json:"axis_min"`
		AxisMax  float64   `json:"axis_max"`
	}

	Series struct {
		Mode    string           `json:"mode"`
		Samples []dmodels.Sample `json:"samples"`
	}
)
