package api

import (
	"net/http"

	"github.com/kwanifi/ratewatch/log"
)

func (api *API) GetState(w http.ResponseWriter, r *http.Request) {
	jsonData(w, api.svc.GetState())
}

func (api *API) GetStats(w http.ResponseWriter, r *http.Request) {
	resp, err := api.svc.GetStats()
	if err != nil {
		log.Error("API GetStats: svc.GetStats: %s", err.Error())
		jsonError(w)
		return
	}
	jsonData(w, resp)
}

func (api *API) GetSeries(w http.ResponseWriter, r *http.Request) {
	jsonData(w, api.svc.GetSeries())
}
