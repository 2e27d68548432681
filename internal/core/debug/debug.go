package debug

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/noughts/internal/core"
	"github.com/dcrodman/noughts/internal/protocol"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Handler serves the pprof endpoints under /debug/pprof/ and the Prometheus
// metrics collected in gatherer under /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// StartUtilities spins off the services associated with debug mode. It returns
// nil if debugging is disabled.
func StartUtilities(cfg *core.Config, log logrus.FieldLogger, gatherer prometheus.Gatherer) *http.Server {
	if !cfg.Debugging.Enabled {
		return nil
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", cfg.Debugging.Port),
		Handler: Handler(gatherer),
	}
	log.Infof("starting debug server on %s", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("error starting debug server: %s", err)
		}
	}()
	return srv
}

// DumpEnvelope writes the full contents of env to log at debug level.
func DumpEnvelope(log logrus.FieldLogger, direction string, env *protocol.Envelope) {
	log.WithField("direction", direction).Debug(dumper.Sdump(env))
}
