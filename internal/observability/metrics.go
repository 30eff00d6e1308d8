// Package observability expose les métriques Prometheus du service de graphe.
//
// Les métriques sont servies sur /metrics. Toutes les méthodes acceptent un
// receiver nil pour que le core reste utilisable sans registre (tests, CLI).
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "socialgraph"

const followSubsystem = "follow"

// Outcome d'une opération du service.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected" // refus métier (self-follow, déjà suivi...)
	OutcomeFailed   = "failed"   // panne d'infra
)

// FollowMetrics regroupe les compteurs du sous-système follow.
type FollowMetrics struct {
	// OperationsTotal compte les opérations par nom et résultat.
	// Labels: operation (follow, unfollow, remove_follower...), outcome
	OperationsTotal *prometheus.CounterVec

	// DegradedReadsTotal compte les lectures servies en mode dégradé.
	// Labels: operation
	DegradedReadsTotal *prometheus.CounterVec

	// SuggestionStoreReads mesure le nombre d'appels au store par calcul de suggestions.
	SuggestionStoreReads prometheus.Histogram

	// StatsCacheTotal compte les hits/miss du cache de stats.
	// Labels: result (hit, miss, error)
	StatsCacheTotal *prometheus.CounterVec
}

// NewFollowMetrics enregistre les métriques sur reg (prometheus.DefaultRegisterer en prod).
func NewFollowMetrics(reg prometheus.Registerer) *FollowMetrics {
	factory := promauto.With(reg)
	return &FollowMetrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: followSubsystem,
				Name:      "operations_total",
				Help:      "Follow service operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		DegradedReadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: followSubsystem,
				Name:      "degraded_reads_total",
				Help:      "Reads answered with default or partial data after a store failure",
			},
			[]string{"operation"},
		),
		SuggestionStoreReads: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: followSubsystem,
				Name:      "suggestion_store_reads",
				Help:      "Store calls issued by one suggestion traversal",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1001},
			},
		),
		StatsCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: followSubsystem,
				Name:      "stats_cache_total",
				Help:      "Follow stats cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (m *FollowMetrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *FollowMetrics) RecordDegraded(operation string) {
	if m == nil {
		return
	}
	m.DegradedReadsTotal.WithLabelValues(operation).Inc()
}

func (m *FollowMetrics) ObserveSuggestionReads(reads int) {
	if m == nil {
		return
	}
	m.SuggestionStoreReads.Observe(float64(reads))
}

func (m *FollowMetrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.StatsCacheTotal.WithLabelValues(result).Inc()
}
