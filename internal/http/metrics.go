package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements core.Stats on a private Prometheus registry so tests
// and multiple instances never fight over global collector registration.
type Metrics struct {
	registry *prometheus.Registry

	EnqueuedTotal        prometheus.Counter
	EnqueueRejectedTotal prometheus.Counter
	SongsPlayedTotal     *prometheus.CounterVec
	DownloadsTotal       *prometheus.CounterVec
	DownloadDuration     *prometheus.HistogramVec
	ActiveDownloads      prometheus.Gauge
	ActiveSessions       prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EnqueuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "musho_enqueued_total",
				Help: "Total number of tracks accepted into queues",
			},
		),
		EnqueueRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "musho_enqueue_rejected_total",
				Help: "Total number of enqueue requests rejected by a full queue",
			},
		),
		SongsPlayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musho_songs_played_total",
				Help: "Total number of songs played",
			},
			[]string{"guild"},
		),
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musho_downloads_total",
				Help: "Total number of finished downloads",
			},
			[]string{"outcome"},
		),
		DownloadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "musho_download_duration_seconds",
				Help:    "Time spent downloading tracks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		ActiveDownloads: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "musho_active_downloads",
				Help: "Downloads currently running",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "musho_active_sessions",
				Help: "Guild sessions currently alive",
			},
		),
	}

	m.registry.MustRegister(
		m.EnqueuedTotal,
		m.EnqueueRejectedTotal,
		m.SongsPlayedTotal,
		m.DownloadsTotal,
		m.DownloadDuration,
		m.ActiveDownloads,
		m.ActiveSessions,
	)

	return m
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordEnqueued(n int) {
	m.EnqueuedTotal.Add(float64(n))
}

func (m *Metrics) RecordEnqueueRejected() {
	m.EnqueueRejectedTotal.Inc()
}

func (m *Metrics) RecordSongPlayed(guildID string) {
	m.SongsPlayedTotal.WithLabelValues(guildID).Inc()
}

func (m *Metrics) RecordDownload(outcome string, elapsed time.Duration) {
	m.DownloadsTotal.WithLabelValues(outcome).Inc()
	m.DownloadDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) SetActiveDownloads(n int) {
	m.ActiveDownloads.Set(float64(n))
}

func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}
