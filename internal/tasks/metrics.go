package tasks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/desertthunder/linkport/internal/models"
)

// Metrics counts imports on a dedicated registry so tests and multiple
// importers never collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	ImportsTotal       *prometheus.CounterVec
	TracksImported     *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the import metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ImportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkport_imports_total",
				Help: "Total number of URL imports by detected source and outcome",
			},
			[]string{"source", "outcome"},
		),
		TracksImported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkport_tracks_imported_total",
				Help: "Total number of tracks stored by imports",
			},
			[]string{"source"},
		),
		ResolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkport_resolution_duration_seconds",
				Help:    "Time spent importing a URL, by import path",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "outcome"},
		),
	}

	m.Registry.MustRegister(m.ImportsTotal, m.TracksImported, m.ResolutionDuration)
	return m
}

func (m *Metrics) observe(source models.PlatformID, playlist *models.ImportedPlaylist, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	outcome := outcomeLabel(err)
	path := "direct"
	if !source.Streamable() {
		path = "resolver"
	}

	m.ImportsTotal.WithLabelValues(string(source), outcome).Inc()
	m.ResolutionDuration.WithLabelValues(path, outcome).Observe(elapsed.Seconds())
	if playlist != nil && err == nil {
		m.TracksImported.WithLabelValues(string(playlist.Source)).Add(float64(playlist.TrackCount))
	}
}
