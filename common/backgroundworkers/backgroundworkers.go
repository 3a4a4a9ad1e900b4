package backgroundworkers

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"goji.io"
	"goji.io/pat"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/common/config"
)

var confHTTPAddr = config.RegisterOption("vertigo.bgworker.http_server_addr", "Bgworker http server address, serves metrics and health", "localhost:5004")

var logger = common.GetFixedPrefixLogger("bgworkers")

// BackgroundWorkerPlugin is implemented by plugins that run their own
// background loops.
type BackgroundWorkerPlugin interface {
	RunBackgroundWorker()
	StopBackgroundWorker(wg *sync.WaitGroup)
}

// Runner starts and stops the background workers among the registered
// plugins, and serves the shared worker http endpoints.
type Runner struct {
	core       *common.Core
	restServer *http.Server

	Muxer *goji.Mux
}

func NewRunner(core *common.Core) *Runner {
	muxer := goji.NewMux()
	muxer.Handle(pat.Get("/metrics"), promhttp.Handler())
	muxer.HandleFunc(pat.Get("/health"), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Runner{
		core:  core,
		Muxer: muxer,
	}
}

func (r *Runner) RunWorkers() {
	for _, p := range r.core.Plugins() {
		if bwc, ok := p.(BackgroundWorkerPlugin); ok {
			logger.Info("Running background worker: ", p.PluginInfo().Name)
			go bwc.RunBackgroundWorker()
		}
	}

	go r.runWebserver()
}

func (r *Runner) StopWorkers(wg *sync.WaitGroup) {
	logger.Info("Shutting down http server...")
	if r.restServer != nil {
		r.restServer.Shutdown(context.Background())
	}

	for _, p := range r.core.Plugins() {
		if bwc, ok := p.(BackgroundWorkerPlugin); ok {
			logger.Info("Stopping background worker: ", p.PluginInfo().Name)
			wg.Add(1)
			go bwc.StopBackgroundWorker(wg)
		}
	}
}

func (r *Runner) runWebserver() {
	addr := confHTTPAddr.GetString()
	logger.Info("Starting bgworker http server on ", addr)

	r.restServer = &http.Server{
		Handler: r.Muxer,
		Addr:    addr,
	}

	err := r.restServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("Failed starting http server")
	}
}
