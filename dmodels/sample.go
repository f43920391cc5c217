package dmodels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrMalformedSample = errors.New("malformed sample")

type (
	Sample struct {
		Timestamp   int64    `json:"timestamp"`
		Rate        float64  `json:"rate"`
		TotalSupply *float64 `json:"total_supply,omitempty"`
	}

	// Series is ordered oldest first.
	Series []Sample

	wireSample struct {
		Timestamp   *json.Number    `json:"timestamp"`
		Rate        *json.Number    `json:"rate"`
		TotalSupply json.RawMessage `json:"total_supply"`
	}
)

func (s Sample) HasTotalSupply() bool {
	return s.TotalSupply != nil
}

// DecodeSample parses one sample object. A missing rate or a timestamp that is
// not a JSON number yields ErrMalformedSample.
func DecodeSample(data []byte) (Sample, error) {
	var w wireSample
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return Sample{}, fmt.Errorf("%w: %s", ErrMalformedSample, err.Error())
	}
	return w.sample()
}

// DecodeSeries parses a JSON array of samples. The body itself must be an
// array; malformed items are dropped and the rest keep their order.
func DecodeSeries(data []byte) (series Series, dropped int, err error) {
	var items []json.RawMessage
	if err = json.Unmarshal(data, &items); err != nil {
		return nil, 0, fmt.Errorf("json.Unmarshal: %s", err.Error())
	}
	if items == nil {
		return nil, 0, fmt.Errorf("json.Unmarshal: body is not an array")
	}
	series = make(Series, 0, len(items))
	for _, item := range items {
		s, err := DecodeSample(item)
		if err != nil {
			dropped++
			continue
		}
		series = append(series, s)
	}
	return series, dropped, nil
}

func (w wireSample) sample() (Sample, error) {
	if w.Rate == nil {
		return Sample{}, fmt.Errorf("%w: missing rate", ErrMalformedSample)
	}
	if w.Timestamp == nil {
		return Sample{}, fmt.Errorf("%w: missing timestamp", ErrMalformedSample)
	}
	rate, err := w.Rate.Float64()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: rate: %s", ErrMalformedSample, err.Error())
	}
	ts, err := w.Timestamp.Int64()
	if err != nil {
		f, ferr := w.Timestamp.Float64()
		if ferr != nil {
			return Sample{}, fmt.Errorf("%w: timestamp: %s", ErrMalformedSample, err.Error())
		}
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return Sample{}, fmt.Errorf("%w: timestamp out of range: %s", ErrMalformedSample, w.Timestamp.String())
		}
		ts = int64(f)
	}
	return Sample{
		Timestamp:   ts,
		Rate:        rate,
		TotalSupply: parseSupply(w.TotalSupply),
	}, nil
}

var supplySuffixes = map[byte]decimal.Decimal{
	'K': decimal.New(1, 3),
	'M': decimal.New(1, 6),
	'B': decimal.New(1, 9),
}

// parseSupply accepts a JSON number, a numeric string or a K/M/B suffixed
// display string. Anything else is treated as absent.
func parseSupply(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
	} else {
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "N/A") {
		return nil
	}
	multiplier := decimal.New(1, 0)
	if m, ok := supplySuffixes[text[len(text)-1]]; ok {
		multiplier = m
		text = strings.TrimSpace(text[:len(text)-1])
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil
	}
	v, _ := d.Mul(multiplier).Float64()
	return &v
}

// Clone returns a copy that shares no backing array with s.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

func (s Series) Last() (Sample, bool) {
	if len(s) == 0 {
		return Sample{}, false
	}
	return s[len(s)-1], true
}
