// Package metrics provides internal metrics collection for the turn
// pipeline. This package is internal and should not be imported by external
// projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn terminal states, used as the result label on turn counters.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultCanceled  = "canceled"
)

// Collector tracks turn lifecycle metrics.
type Collector struct {
	turnsTotal      *prometheus.CounterVec
	turnDuration    prometheus.Histogram
	deltasTotal     prometheus.Counter
	interruptsTotal *prometheus.CounterVec
	cancelsTotal    prometheus.Counter
}

// NewCollector creates a metrics collector registered against reg. A nil reg
// uses the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of turns by terminal state",
			},
			[]string{"result"},
		),
		turnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Turn duration from submission to settlement",
				Buckets:   prometheus.DefBuckets,
			},
		),
		deltasTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_deltas_total",
				Help:      "Total number of stream deltas applied to transcripts",
			},
		),
		interruptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interrupts_total",
				Help:      "Total number of backend interrupts by kind",
			},
			[]string{"kind"},
		),
		cancelsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancellations_total",
				Help:      "Total number of user-initiated turn cancellations",
			},
		),
	}
}

// ObserveTurn records one settled turn.
func (c *Collector) ObserveTurn(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(result).Inc()
	c.turnDuration.Observe(d.Seconds())
}

// IncDelta records one applied stream delta.
func (c *Collector) IncDelta() {
	if c == nil {
		return
	}
	c.deltasTotal.Inc()
}

// IncInterrupt records one classified backend interrupt.
func (c *Collector) IncInterrupt(kind string) {
	if c == nil {
		return
	}
	c.interruptsTotal.WithLabelValues(kind).Inc()
}

// IncCancellation records one user cancellation.
func (c *Collector) IncCancellation() {
	if c == nil {
		return
	}
	c.cancelsTotal.Inc()
}
