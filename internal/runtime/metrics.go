package runtime

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/kvale/busrpc/internal/runtime/config"
	loggingpkg "github.com/kvale/busrpc/internal/runtime/logging"
)

const (
	dispatchOutcomeOK        = "ok"
	dispatchOutcomeError     = "error"
	dispatchOutcomeExpired   = "expired"
	dispatchOutcomeMalformed = "malformed"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busrpc",
		Name:      "requests_total",
		Help:      "RPC requests published, by message kind.",
	}, []string{"kind"})

	requestTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "busrpc",
		Name:      "request_timeouts_total",
		Help:      "Caller-side waits that expired before a reply arrived.",
	})

	repliesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "busrpc",
		Name:      "replies_dropped_total",
		Help:      "Replies that matched no pending request and were discarded.",
	})

	inflightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "busrpc",
		Name:      "inflight_requests",
		Help:      "Requests currently awaiting a reply on this caller.",
	})

	dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "busrpc",
		Name:      "dispatch_total",
		Help:      "Worker deliveries processed, by outcome.",
	}, []string{"outcome"})

	handlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "busrpc",
		Name:      "handler_duration_seconds",
		Help:      "Handler execution time, by message kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestTimeoutsTotal,
		repliesDroppedTotal,
		inflightRequests,
		dispatchTotal,
		handlerDuration,
	)
}

// serveMetrics exposes the Prometheus endpoint when the config asks for it.
func serveMetrics(conf *configpkg.Config, log loggingpkg.ServiceLogger) {
	if !conf.MetricsEnabled || conf.MetricsPort <= 0 {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", conf.MetricsPort)

	log.Info("Starting metrics server", loggingpkg.LogFields{"address": addr})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Metrics server stopped", err, loggingpkg.LogFields{"address": addr})
		}
	}()
}
