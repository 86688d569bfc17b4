// Package metrics holds the process counters for scans and explorer
// sessions. Nothing is served over the network; WriteText renders the
// registry for the CLI.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Registry is the package registry all collectors below are registered on.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// PhotosDiscovered counts photos inserted into the catalog by rescans.
	PhotosDiscovered = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "photoframe",
		Subsystem: "scanner",
		Name:      "photos_discovered_total",
		Help:      "Photos found on disk for the first time",
	})

	PhotosLost = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "photoframe",
		Subsystem: "scanner",
		Name:      "photos_lost_total",
		Help:      "Catalogued photos not found during a rescan",
	})

	PhotosPruned = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "photoframe",
		Subsystem: "scanner",
		Name:      "photos_pruned_total",
		Help:      "Lost photos deleted from the catalog",
	})

	UnknownFiles = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "photoframe",
		Subsystem: "scanner",
		Name:      "unknown_files_total",
		Help:      "Files skipped because they are not decodable images",
	})

	ScanDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoframe",
		Subsystem: "scanner",
		Name:      "rescan_duration_seconds",
		Help:      "Wall time of a rescan",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"status"})

	// ExplorerSessions counts explorer sessions by how they ended.
	ExplorerSessions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoframe",
		Subsystem: "explorer",
		Name:      "sessions_total",
		Help:      "Explorer sessions",
	}, []string{"outcome"})

	StaleUpdatesDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "photoframe",
		Subsystem: "explorer",
		Name:      "stale_updates_dropped_total",
		Help:      "Updates discarded because they belonged to an older page",
	})

	ImagesLost = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "photoframe",
		Subsystem: "explorer",
		Name:      "images_lost_total",
		Help:      "Photos that could not be decoded for display",
	})
)

// WriteText writes every metric in the text exposition format.
func WriteText(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
