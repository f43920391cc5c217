package api

import (
	"net/http"

	"github.com/kwanifi/ratewatch/config"
	"github.com/kwanifi/ratewatch/dao/filters"
	"github.com/kwanifi/ratewatch/log"
)

func (api *API) GetChart(w http.ResponseWriter, r *http.Request) {
	filter := filters.Chart{
		MaxPoints: api.cfg.History.MaxPoints,
		Limit:     config.MaxChartPoints(),
	}
	err := api.queryDecoder.Decode(&filter, r.URL.Query())
	if err != nil {
		log.Debug("API GetChart: Decode: %s", err.Error())
		jsonBadRequest(w, "")
		return
	}
	err = filter.Validate()
	if err != nil {
		log.Debug("API GetChart: Validate: %s", err.Error())
		jsonBadRequest(w, err.Error())
		return
	}
	resp, err := api.svc.GetChart(filter)
	if err != nil {
		log.Error("API GetChart: svc.GetChart: %s", err.Error())
		jsonError(w)
		return
	}
	jsonData(w, resp)
}
