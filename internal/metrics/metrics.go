// Copyright 2025 Certen Protocol
//
// Package metrics exposes the guardian's Prometheus counters and gauges:
// ingestion/removal activity, RPC request counts, and active peer-sync
// tasks. Grounded on the teacher's use of
// github.com/prometheus/client_golang throughout pkg/server and pkg/batch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every metric the guardian records, so callers hold one
// value instead of a pile of package-level globals.
type Registry struct {
	RevisionsIngested  prometheus.Counter
	RevisionsRejected  *prometheus.CounterVec
	RevisionsRemoved   prometheus.Counter
	ContractsEffective *prometheus.CounterVec

	RPCRequests *prometheus.CounterVec
	RPCDenied   prometheus.Counter
	RPCLatency  *prometheus.HistogramVec

	PeerTasksActive prometheus.Gauge
	PeerSyncErrors  *prometheus.CounterVec
}

// New registers every guardian metric against reg (pass
// prometheus.DefaultRegisterer in production, a fresh registry in tests).
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		RevisionsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "guardian_revisions_ingested_total",
			Help: "Revisions successfully added to the state engine.",
		}),
		RevisionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_revisions_rejected_total",
			Help: "Revisions rejected during ingest, labeled by reason.",
		}, []string{"reason"}),
		RevisionsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "guardian_revisions_removed_total",
			Help: "Revisions detached from the state engine.",
		}),
		ContractsEffective: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_contracts_effective_total",
			Help: "Contracts that became effective, labeled by template.",
		}, []string{"template"}),
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_rpc_requests_total",
			Help: "RPC requests served, labeled by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		RPCDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "guardian_rpc_denied_total",
			Help: "RPC requests denied due to missing guardian/user resolution.",
		}),
		RPCLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_rpc_request_duration_seconds",
			Help:    "RPC request latency, labeled by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		PeerTasksActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "guardian_peer_sync_tasks_active",
			Help: "Currently running per-peer sync tasks.",
		}),
		PeerSyncErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_peer_sync_errors_total",
			Help: "Peer sync loop errors, labeled by stage.",
		}, []string{"stage"}),
	}
}
