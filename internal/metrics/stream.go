// Package metrics provides Prometheus metrics for the stream lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	composedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streampi",
		Subsystem: "composer",
		Name:      "commands_total",
		Help:      "FFmpeg commands composed, by deployment kind",
	}, []string{"deployment"})

	streamUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streampi",
		Subsystem: "stream",
		Name:      "up",
		Help:      "1 while the FFmpeg process is running",
	})

	streamRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streampi",
		Subsystem: "stream",
		Name:      "restarts_total",
		Help:      "FFmpeg restarts triggered by config reloads or the API",
	})

	streamStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streampi",
		Subsystem: "stream",
		Name:      "start_time_seconds",
		Help:      "Unix timestamp of the last FFmpeg start",
	})

	configReloads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streampi",
		Subsystem: "config",
		Name:      "reloads_total",
		Help:      "Config file reloads that produced a new command",
	})
)

// CommandComposed counts a successful composition for a deployment kind.
func CommandComposed(deployment string) {
	composedTotal.WithLabelValues(deployment).Inc()
}

// StreamStarted marks the stream as running and records the start time.
func StreamStarted() {
	streamUp.Set(1)
	streamStartTime.Set(float64(time.Now().Unix()))
}

// StreamStopped marks the stream as not running.
func StreamStopped() {
	streamUp.Set(0)
}

// StreamRestarted counts a restart of the FFmpeg process.
func StreamRestarted() {
	streamRestarts.Inc()
}

// ConfigReloaded counts a config reload.
func ConfigReloaded() {
	configReloads.Inc()
}

// Handler returns the Prometheus scrape handler. All promauto-registered
// metrics are collected automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}
