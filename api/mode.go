package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kwanifi/ratewatch/log"
	"github.com/kwanifi/ratewatch/services/viewmode"
)

func (api *API) SetMode(w http.ResponseWriter, r *http.Request) {
	mode := mux.Vars(r)["mode"]
	resp, err := api.svc.SetMode(mode)
	if err != nil {
		if errors.Is(err, viewmode.ErrUnknownMode) {
			log.Debug("API SetMode: %s", err.Error())
			jsonBadRequest(w, err.Error())
			return
		}
		log.Error("API SetMode: svc.SetMode: %s", err.Error())
		jsonError(w)
		return
	}
	jsonData(w, resp)
}

func (api *API) Refresh(w http.ResponseWriter, r *http.Request) {
	jsonData(w, api.svc.Refresh())
}
