package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kwanifi/ratewatch/api"
	"github.com/kwanifi/ratewatch/config"
	"github.com/kwanifi/ratewatch/log"
	"github.com/kwanifi/ratewatch/services"
	"github.com/kwanifi/ratewatch/services/history"
	"github.com/kwanifi/ratewatch/services/live"
	"github.com/kwanifi/ratewatch/services/modules"
	"github.com/kwanifi/ratewatch/services/scheduler"
	"github.com/kwanifi/ratewatch/services/viewmode"
)

func main() {
	cfg := config.GetConfig()
	err := log.SetLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal("log.SetLevel: %s", err.Error())
	}
	defer log.Sync()

	log.Info("%s: upstream %s", config.ServiceName, cfg.APIBase)

	fetcher := history.NewFetcher(&http.Client{}, cfg.APIBase, cfg.History.Timeout)
	// The stream is long-lived, so its client carries no overall timeout.
	consumer := live.NewConsumer(&http.Client{}, cfg.APIBase, cfg.Live.BufferCapacity)
	ctrl := viewmode.NewController(fetcher, consumer)

	s, err := services.NewServices(ctrl, cfg)
	if err != nil {
		log.Fatal("services.NewServices: %s", err.Error())
	}

	apiServer := api.NewAPI(cfg, s)

	sch := scheduler.NewScheduler()
	sch.AddProcessWithInterval(s.ReportStatus, cfg.Status.Interval)

	g := modules.NewGroup(s, apiServer, sch)
	g.Run()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	<-interrupt
	g.Stop()
}
