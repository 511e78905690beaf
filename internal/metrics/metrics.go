package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
    KeysComputed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "reqkey",
            Name:      "keys_computed_total",
            Help:      "Count of unique keys computed, by normalization outcome.",
        },
        []string{"outcome"},
    )

    Registrations = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "reqkey",
            Name:      "registrations_total",
            Help:      "Registrations processed, split by created vs duplicate.",
        },
        []string{"result"},
    )

    StoreLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "reqkey",
            Name:      "store_latency_seconds",
            Help:      "Latency of seen-set store operations.",
        },
        []string{"op"},
    )

    EventSubscribers = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "reqkey",
            Name:      "event_subscribers",
            Help:      "Number of connected event stream subscribers.",
        },
    )
)

// Label values for KeysComputed.
const (
    OutcomeNormalized = "normalized"
    OutcomeFallback   = "fallback"
)

// Label values for Registrations.
const (
    ResultCreated   = "created"
    ResultDuplicate = "duplicate"
)

// Register registers the reqkey metrics into the default registry.
func Register() {
    prometheus.MustRegister(KeysComputed, Registrations, StoreLatency, EventSubscribers)
}
