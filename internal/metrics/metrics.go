// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e2j_refresh_total",
		Help: "Generation runs by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "e2j_refresh_duration_seconds",
		Help:    "Wall time of generation runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	channelsLastRefresh = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "e2j_channels_last_refresh",
		Help: "Channels written in the last successful refresh",
	})

	programmesLastRefresh = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "e2j_programmes_last_refresh",
		Help: "Programme entries written in the last successful refresh",
	})

	epgChannelFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "e2j_epg_channel_failures_total",
		Help: "Per-channel EPG fetch failures (run continued)",
	})

	fileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e2j_file_requests_total",
		Help: "Artifact file requests by outcome",
	}, []string{"outcome"}) // outcome=served|not_found|not_modified
)

// RecordRefreshOutcome records a finished generation run and its wall time.
// outcome is "success" or "failure".
func RecordRefreshOutcome(outcome string, d time.Duration) {
	refreshTotal.WithLabelValues(outcome).Inc()
	refreshDuration.Observe(d.Seconds())
}

// RecordRefreshStats records the artifact sizes of a successful run.
func RecordRefreshStats(channels, programmes int) {
	channelsLastRefresh.Set(float64(channels))
	programmesLastRefresh.Set(float64(programmes))
}

// RecordEPGChannelFailure counts a channel whose EPG fetch failed.
func RecordEPGChannelFailure() {
	epgChannelFailures.Inc()
}

// RecordFileRequest counts an artifact request outcome.
func RecordFileRequest(outcome string) {
	fileRequests.WithLabelValues(outcome).Inc()
}
