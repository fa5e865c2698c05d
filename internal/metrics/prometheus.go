package metrics

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prefix lookup outcomes used as the "result" label.
const (
	ResultFound     = "found"
	ResultNone      = "none"
	ResultAmbiguous = "ambiguous"
	ResultMissing   = "missing"
)

// Registry holds the daemon's counters.
//
// A nil *Registry is valid; every Record method on it is a no-op.
type Registry struct {
	Connections   prometheus.Counter
	Truncations   prometheus.Counter
	PrefixLookups *prometheus.CounterVec
	ShortWrites   prometheus.Counter
}

// New registers the daemon's counters with reg. A nil reg registers with the
// Prometheus default registry.
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	r := &Registry{}

	r.Connections = factory.NewCounter(prometheus.CounterOpts{
		Name: "denatd_connections_total",
		Help: "Total client connections served",
	})

	r.Truncations = factory.NewCounter(prometheus.CounterOpts{
		Name: "denatd_response_truncations_total",
		Help: "Responses that hit the buffer capacity",
	})

	r.PrefixLookups = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "denatd_prefix_lookups_total",
		Help: "Delegated prefix lookups by outcome",
	}, []string{"result"})

	r.ShortWrites = factory.NewCounter(prometheus.CounterOpts{
		Name: "denatd_short_writes_total",
		Help: "Responses not written in full to the client",
	})

	return r
}

// RecordConnection records a served connection and whether its response was
// truncated.
func (r *Registry) RecordConnection(truncated bool) {
	if r == nil {
		return
	}
	r.Connections.Inc()
	if truncated {
		r.Truncations.Inc()
	}
}

// RecordPrefixLookup records the outcome of one prefix lookup.
func (r *Registry) RecordPrefixLookup(result string) {
	if r == nil {
		return
	}
	r.PrefixLookups.WithLabelValues(result).Inc()
}

// RecordShortWrite records a response that did not reach the client in full.
func (r *Registry) RecordShortWrite() {
	if r == nil {
		return
	}
	r.ShortWrites.Inc()
}

// Handler returns the exposition handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g over HTTP on l until the listener is closed.
func Serve(l net.Listener, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
