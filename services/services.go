package services

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kwanifi/ratewatch/config"
	"github.com/kwanifi/ratewatch/dao/filters"
	"github.com/kwanifi/ratewatch/dmodels"
	"github.com/kwanifi/ratewatch/services/viewmode"
	"github.com/kwanifi/ratewatch/smodels"
)

type (
	Service interface {
		GetState() smodels.State
		GetStats() (smodels.Stats, error)
		GetChart(filter filters.Chart) (smodels.ChartSeries, error)
		GetSeries() smodels.Series
		SetMode(mode string) (smodels.State, error)
		Refresh() smodels.State
	}

	// Controller is the part of viewmode.Controller the facade relies on.
	Controller interface {
		Start()
		Stop()
		SetMode(mode viewmode.Mode) error
		Refresh()
		Snapshot() viewmode.Snapshot
		Active() (dmodels.Series, viewmode.Mode, uint64)
	}

	ServiceFacade struct {
		ctrl  Controller
		cache *cache.Cache
		loc   *time.Location
	}
)

func NewServices(ctrl Controller, cfg config.Config) (*ServiceFacade, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("cfg.Location: %s", err.Error())
	}
	return &ServiceFacade{
		ctrl:  ctrl,
		cache: cache.New(cfg.Cache.TTL, 2*cfg.Cache.TTL),
		loc:   loc,
	}, nil
}

func (s *ServiceFacade) Title() string {
	return "Engine"
}

// Run starts the controller in history mode. It does not block.
func (s *ServiceFacade) Run() error {
	s.ctrl.Start()
	return nil
}

func (s *ServiceFacade) Stop() error {
	s.ctrl.Stop()
	s.cache.Flush()
	return nil
}
