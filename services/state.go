package services

import (
	"fmt"

	"github.com/kwanifi/ratewatch/dmodels"
	"github.com/kwanifi/ratewatch/log"
	"github.com/kwanifi/ratewatch/services/viewmode"
	"github.com/kwanifi/ratewatch/smodels"
)

func (s *ServiceFacade) GetState() smodels.State {
	return toState(s.ctrl.Snapshot())
}

func (s *ServiceFacade) GetSeries() smodels.Series {
	series, mode, _ := s.ctrl.Active()
	if series == nil {
		series = dmodels.Series{}
	}
	return smodels.Series{Mode: string(mode), Samples: series}
}

func (s *ServiceFacade) SetMode(mode string) (smodels.State, error) {
	err := s.ctrl.SetMode(viewmode.Mode(mode))
	if err != nil {
		return smodels.State{}, fmt.Errorf("ctrl.SetMode: %w", err)
	}
	return s.GetState(), nil
}

func (s *ServiceFacade) Refresh() smodels.State {
	s.ctrl.Refresh()
	return s.GetState()
}

// ReportStatus logs a one-line summary of the engine state.
func (s *ServiceFacade) ReportStatus() error {
	st, err := s.GetStats()
	if err != nil {
		return fmt.Errorf("GetStats: %s", err.Error())
	}
	snap := s.ctrl.Snapshot()
	log.Info("status: mode=%s loading=%t history=%d live=%d (%s) latest=%s min=%s max=%s supply=%s",
		snap.Mode, snap.Loading, snap.HistoryLength, snap.LiveLength, snap.LiveState,
		st.Latest, st.Min, st.Max, st.TotalSupply)
	if snap.Error != "" {
		log.Warn("status: %s", snap.Error)
	}
	return nil
}

func toState(snap viewmode.Snapshot) smodels.State {
	st := smodels.State{
		Mode:          string(snap.Mode),
		Loading:       snap.Loading,
		Error:         snap.Error,
		Epoch:         snap.Epoch,
		Version:       snap.Version,
		HistoryLength: snap.HistoryLength,
		LiveLength:    snap.LiveLength,
		LiveState:     snap.LiveState.String(),
		FetchInFlight: snap.FetchInFlight,
	}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt
		st.UpdatedAt = &t
	}
	return st
}
