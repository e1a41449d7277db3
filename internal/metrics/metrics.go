package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeAccepted labels events that entered the engine.
	OutcomeAccepted = "accepted"
	// OutcomeRejected labels events refused at validation.
	OutcomeRejected = "rejected"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil_telemetry",
			Name:      "events_total",
			Help:      "Total ingested events, partitioned by event type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil_telemetry",
			Name:      "signals_total",
			Help:      "Signals emitted to subscribers, partitioned by kind.",
		},
		[]string{"kind"},
	)

	signalDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vigil_telemetry",
			Name:      "signal_drops_total",
			Help:      "Signals dropped because the dispatch buffer was full.",
		},
	)

	sweepSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vigil_telemetry",
			Name:      "sweep_seconds",
			Help:      "Sweep latency in seconds, partitioned by sweep kind.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"sweep"},
	)

	sinkDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vigil_telemetry",
			Name:      "sink_drops_total",
			Help:      "Events dropped by the export-sink noise filter.",
		},
	)
)

// Register attaches the engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsTotal,
		signalsTotal,
		signalDropsTotal,
		sweepSeconds,
		sinkDropsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveEvent counts one ingested event.
func ObserveEvent(eventType, outcome string) {
	eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveSignal counts one emitted signal.
func ObserveSignal(kind string) {
	signalsTotal.WithLabelValues(kind).Inc()
}

// ObserveSignalDrop counts a signal lost to a full dispatch buffer.
func ObserveSignalDrop() {
	signalDropsTotal.Inc()
}

// ObserveSweep records a sweep duration.
func ObserveSweep(sweep string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	sweepSeconds.WithLabelValues(sweep).Observe(duration.Seconds())
}

// ObserveSinkDrop counts an event suppressed by the noise filter.
func ObserveSinkDrop() {
	sinkDropsTotal.Inc()
}
