package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "farmrent"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transitions_total",
			Help:      "Rental request operations by kind and outcome.",
		},
		[]string{"operation", "result"},
	)

	publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_publishes_total",
			Help:      "Broadcast attempts by channel and outcome.",
		},
		[]string{"channel", "result"},
	)

	overlayApplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_applies_total",
			Help:      "Received broadcasts by whether they replaced the overlay entry.",
		},
		[]string{"result"},
	)

	openWindows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_windows",
			Help:      "Client windows currently subscribed to the channel.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, transitions, publishes, overlayApplies, openWindows)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveTransition counts one booking operation. err == nil is "ok".
func ObserveTransition(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	transitions.WithLabelValues(operation, result).Inc()
}

func ObservePublish(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishes.WithLabelValues(channel, result).Inc()
}

// ObserveOverlayApply records whether a received record was newer than what the overlay held.
func ObserveOverlayApply(applied bool) {
	if applied {
		overlayApplies.WithLabelValues("applied").Inc()
		return
	}
	overlayApplies.WithLabelValues("stale").Inc()
}

func WindowOpened() { openWindows.Inc() }

func WindowClosed() { openWindows.Dec() }
