package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCRequests counts JSON-RPC calls by method and outcome.
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintdeals",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "JSON-RPC requests processed, labelled by method and outcome.",
	}, []string{"method", "outcome"})

	// RPCDuration observes handler latency by method.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mintdeals",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "JSON-RPC handler latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// LedgerEvents counts events emitted by the engines, by type.
	LedgerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintdeals",
		Subsystem: "ledger",
		Name:      "events_total",
		Help:      "Engine events emitted, labelled by event type.",
	}, []string{"type"})
)
