package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/rs/cors"
	"github.com/urfave/negroni"

	"github.com/kwanifi/ratewatch/config"
	"github.com/kwanifi/ratewatch/log"
	"github.com/kwanifi/ratewatch/services"
)

const shutdownTimeout = 5 * time.Second

type (
	API struct {
		router       *mux.Router
		server       *http.Server
		cfg          config.Config
		svc          services.Service
		queryDecoder *schema.Decoder
	}

	// Route stores an API route data.
	Route struct {
		Path   string
		Method string
		Func   func(http.ResponseWriter, *http.Request)
	}
)

func NewAPI(cfg config.Config, svc services.Service) *API {
	queryDecoder := schema.NewDecoder()
	queryDecoder.IgnoreUnknownKeys(true)
	api := &API{
		cfg:          cfg,
		svc:          svc,
		queryDecoder: queryDecoder,
	}
	api.initialize()
	return api
}

func (api *API) Title() string {
	return "API"
}

// Run starts the http server and blocks until it is stopped.
func (api *API) Run() error {
	log.Info("API: listening on %s", api.server.Addr)
	err := api.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe: %s", err.Error())
	}
	return nil
}

func (api *API) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return api.server.Shutdown(ctx)
}

func (api *API) Handler() http.Handler {
	return api.server.Handler
}

func (api *API) initialize() {
	api.router = mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   api.cfg.API.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	api.loadRoutes()

	n := negroni.New(negroni.NewRecovery(), negroni.HandlerFunc(logRequest))
	n.Use(c)
	n.UseHandler(api.router)

	api.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", api.cfg.API.ListenOnPort),
		Handler: n,
	}
}

func (api *API) loadRoutes() {
	routes := []Route{
		{Path: "/", Method: http.MethodGet, Func: api.Index},
		{Path: "/health", Method: http.MethodGet, Func: api.Health},

		{Path: "/state", Method: http.MethodGet, Func: api.GetState},
		{Path: "/stats", Method: http.MethodGet, Func: api.GetStats},
		{Path: "/chart", Method: http.MethodGet, Func: api.GetChart},
		{Path: "/series", Method: http.MethodGet, Func: api.GetSeries},

		{Path: "/mode/{mode}", Method: http.MethodPost, Func: api.SetMode},
		{Path: "/refresh", Method: http.MethodPost, Func: api.Refresh},
	}

	for _, route := range routes {
		api.router.HandleFunc(route.Path, route.Func).Methods(route.Method, http.MethodOptions)
	}
}

func logRequest(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	status := 0
	if rw, ok := w.(negroni.ResponseWriter); ok {
		status = rw.Status()
	}
	log.Debug("API %s %s: %d in %s", r.Method, r.URL.Path, status, time.Since(start))
}

func jsonData(w http.ResponseWriter, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		log.Error("API jsonData: json.Marshal: %s", err.Error())
		jsonError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func jsonError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "service error")
}

func jsonBadRequest(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "bad request"
	}
	writeError(w, http.StatusBadRequest, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
