package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for the checks counter.
const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

// Metrics holds the gate's prometheus instruments.
type Metrics struct {
	// Checks counts permission-check responses by topic and outcome.
	Checks *prometheus.CounterVec

	// BulkExpansions counts bulk messages expanded into per-item checks.
	BulkExpansions prometheus.Counter

	// BulkInFlight tracks live entries in the bulk-completion table.
	BulkInFlight prometheus.Gauge

	// Collisions counts correlation IDs reused while still in flight.
	Collisions prometheus.Counter
}

// NewMetrics creates the gate metrics registered with reg.  A nil reg
// registers with a private throwaway registry, so callers that do not scrape
// need not care.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Metrics{
		Checks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "relay_permission_checks_total",
			Help: "Permission check responses by topic and outcome.",
		}, []string{"topic", "outcome"}),
		BulkExpansions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relay_bulk_expansions_total",
			Help: "Bulk messages expanded into per-item permission checks.",
		}),
		BulkInFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "relay_bulk_in_flight",
			Help: "Live entries in the bulk-completion table.",
		}),
		Collisions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relay_correlation_collisions_total",
			Help: "Correlation IDs reused while still in flight.",
		}),
	}
}
