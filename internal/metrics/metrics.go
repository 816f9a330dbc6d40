// Package metrics holds the Prometheus collectors for backend resolution and
// rendering. Collectors register with the default registry at init.
package metrics

import (
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Resolution outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
	OutcomeCacheHit = "cache_hit"
)

var (
	resolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdrender_backend_resolutions_total",
			Help: "Number of backend resolution attempts by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	resolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mdrender_backend_resolution_duration_seconds",
			Help:    "Time taken to resolve a backend, cache hits included.",
			Buckets: prometheus.DefBuckets,
		},
	)

	renderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdrender_renders_total",
			Help: "Number of render calls by producing tier.",
		},
		[]string{"tier"},
	)

	renderCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdrender_render_cache_total",
			Help: "Render cache lookups by result.",
		},
		[]string{"result"},
	)

	tierFailureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdrender_tier_failures_total",
			Help: "Number of render tier failures that triggered a cascade.",
		},
		[]string{"tier"},
	)

	renderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mdrender_render_duration_seconds",
			Help:    "Time taken by uncached renders.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
)

func init() {
	prometheus.MustRegister(
		resolutionTotal,
		resolutionDuration,
		renderTotal,
		renderCacheTotal,
		tierFailureTotal,
		renderDuration,
	)
}

// ObserveResolution records one resolve call.
func ObserveResolution(backend, outcome string, d time.Duration) {
	resolutionTotal.WithLabelValues(backend, outcome).Inc()
	resolutionDuration.Observe(d.Seconds())
}

// ObserveRender records the tier that produced a result.
func ObserveRender(tier string, d time.Duration) {
	renderTotal.WithLabelValues(tier).Inc()
	if d > 0 {
		renderDuration.Observe(d.Seconds())
	}
}

// ObserveCache records a render cache lookup.
func ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	renderCacheTotal.WithLabelValues(result).Inc()
}

// ObserveTierFailure records a tier that failed and handed over to the next.
func ObserveTierFailure(tier string) {
	tierFailureTotal.WithLabelValues(tier).Inc()
}

// WriteText writes the mdrender metric families in the Prometheus text format.
func WriteText(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "mdrender_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
