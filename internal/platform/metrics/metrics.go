package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	LeadsCreated         prometheus.Counter
	LeadsUpdated         prometheus.Counter
	LeadsDeleted         prometheus.Counter
	PIIRedactions        prometheus.Counter
	SyncFallbacks        prometheus.Counter
	CapabilityBootstraps prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LeadsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_leads_created_total",
			Help: "Total number of leads created",
		}),
		LeadsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_leads_updated_total",
			Help: "Total number of lead updates persisted",
		}),
		LeadsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_leads_deleted_total",
			Help: "Total number of leads deleted",
		}),
		PIIRedactions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_pii_redactions_total",
			Help: "Total number of writes where submitted PII was stripped",
		}),
		SyncFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_sync_fallbacks_total",
			Help: "Total number of live views that fell back to unordered watches",
		}),
		CapabilityBootstraps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_capability_bootstraps_total",
			Help: "Total number of identities bootstrapped with default capabilities",
		}),
	}
}

// The increment helpers tolerate a nil receiver so unit tests can exercise
// services without registering collectors on the default registry.

func (m *Metrics) IncLeadsCreated() {
	if m != nil {
		m.LeadsCreated.Inc()
	}
}

func (m *Metrics) IncLeadsUpdated() {
	if m != nil {
		m.LeadsUpdated.Inc()
	}
}

func (m *Metrics) IncLeadsDeleted() {
	if m != nil {
		m.LeadsDeleted.Inc()
	}
}

func (m *Metrics) IncPIIRedaction() {
	if m != nil {
		m.PIIRedactions.Inc()
	}
}

func (m *Metrics) IncSyncFallback() {
	if m != nil {
		m.SyncFallbacks.Inc()
	}
}

func (m *Metrics) IncCapabilityBootstrap() {
	if m != nil {
		m.CapabilityBootstraps.Inc()
	}
}
