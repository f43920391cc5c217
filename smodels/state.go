package smodels

import "time"

type State struct {
	Mode          string     `json:"mode"`
	Loading       bool       `json:"loading"`
	Error         string     `json:"error,omitempty"`
	Epoch         uint64     `json:"epoch"`
	Version       uint64     `json:"version"`
	HistoryLength int        `json:"history_length"`
	LiveLength    int        `json:"live_length"`
	LiveState     string     `json:"live_state"`
	FetchInFlight bool       `json:"fetch_in_flight"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}
