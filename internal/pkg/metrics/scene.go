package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pingsphere",
		Subsystem: "engine",
		Name:      "tick_duration_seconds",
		Help:      "Time spent advancing the scene by one tick",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})

	presencesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pingsphere",
		Subsystem: "engine",
		Name:      "presences_active",
		Help:      "Presences currently on the globe",
	})

	pingsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pingsphere",
		Subsystem: "engine",
		Name:      "pings_active",
		Help:      "Ping arcs currently on the globe",
	})

	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pingsphere",
		Subsystem: "engine",
		Name:      "phase_transitions_total",
		Help:      "Ping phase entries, by phase entered",
	}, []string{"phase"})

	evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pingsphere",
		Subsystem: "engine",
		Name:      "evictions_total",
		Help:      "Entities removed from the scene",
	}, []string{"kind"})

	pingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pingsphere",
		Subsystem: "engine",
		Name:      "pings_created_total",
		Help:      "Pings admitted into the scene, by origin",
	}, []string{"origin"})

	invalidInput = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pingsphere",
		Subsystem: "engine",
		Name:      "invalid_input_total",
		Help:      "Rejected presence or ping events",
	}, []string{"kind"})
)

// Scene reports scene engine activity to Prometheus.
type Scene struct{}

func (Scene) ObserveTick(seconds float64) { tickDuration.Observe(seconds) }

func (Scene) SetActive(presences, pings int) {
	presencesActive.Set(float64(presences))
	pingsActive.Set(float64(pings))
}

func (Scene) PhaseEntered(p domain.Phase) { phaseTransitions.WithLabelValues(p.String()).Inc() }

func (Scene) Evicted(k domain.EntityKind) { evictions.WithLabelValues(string(k)).Inc() }

func (Scene) PingCreated(origin string) { pingsCreated.WithLabelValues(origin).Inc() }

func (Scene) InvalidInput(k domain.EntityKind) { invalidInput.WithLabelValues(string(k)).Inc() }
