package services

import (
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/kwanifi/ratewatch/dao/filters"
	"github.com/kwanifi/ratewatch/services/charts"
	"github.com/kwanifi/ratewatch/services/stats"
	"github.com/kwanifi/ratewatch/services/viewmode"
	"github.com/kwanifi/ratewatch/smodels"
)

// Derived values are memoized per mode and version, so repeated polling
// between two updates reuses the same result.
func cacheKey(kind string, mode viewmode.Mode, version uint64, extra int) string {
	return fmt.Sprintf("%s:%s:%d:%d", kind, mode, version, extra)
}

func (s *ServiceFacade) GetStats() (smodels.Stats, error) {
	snap := s.ctrl.Snapshot()
	if item, ok := s.cache.Get(cacheKey("stats", snap.Mode, snap.Version, 0)); ok {
		resp, ok := item.(smodels.Stats)
		if !ok {
			return resp, fmt.Errorf("cache: unexpected stats item %T", item)
		}
		return resp, nil
	}
	series, mode, version := s.ctrl.Active()
	st := stats.Compute(series)
	resp := smodels.Stats{
		Mode:        string(mode),
		Latest:      st.Latest,
		Min:         st.Min,
		Max:         st.Max,
		TotalSupply: st.TotalSupply,
	}
	s.cache.Set(cacheKey("stats", mode, version, 0), resp, cache.DefaultExpiration)
	return resp, nil
}

func (s *ServiceFacade) GetChart(filter filters.Chart) (smodels.ChartSeries, error) {
	snap := s.ctrl.Snapshot()
	if item, ok := s.cache.Get(cacheKey("chart", snap.Mode, snap.Version, filter.MaxPoints)); ok {
		resp, ok := item.(smodels.ChartSeries)
		if !ok {
			return resp, fmt.Errorf("cache: unexpected chart item %T", item)
		}
		return resp, nil
	}
	series, mode, version := s.ctrl.Active()
	cs := charts.ToChartSeries(series, filter.MaxPoints, s.loc)
	resp := smodels.ChartSeries{
		Mode:     string(mode),
		Labels:   cs.Labels,
		Values:   cs.Values,
		YMin:     cs.YMin,
		YMax:     cs.YMax,
		YPadding: cs.YPadding,
		AxisMin:  cs.AxisMin(),
		AxisMax:  cs.AxisMax(),
	}
	s.cache.Set(cacheKey("chart", mode, version, filter.MaxPoints), resp, cache.DefaultExpiration)
	return resp, nil
}
