package filters

import "fmt"

type Chart struct {
	// MaxPoints is pre-filled by the caller with the configured default.
	MaxPoints int `schema:"max_points"`
	// Limit is the largest accepted MaxPoints, set by the caller.
	Limit int `schema:"-"`
}

func (f Chart) Validate() error {
	if f.MaxPoints <= 0 {
		return fmt.Errorf("max_points: must be positive")
	}
	if f.Limit > 0 && f.MaxPoints > f.Limit {
		return fmt.Errorf("max_points: must not exceed %d", f.Limit)
	}
	return nil
}
