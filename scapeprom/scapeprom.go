// Package scapeprom exports engine metrics to Prometheus. Collector
// implements scape.MetricsCollector; wire it with
// scape.WithMetricsCollector and serve promhttp as usual.
package scapeprom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Options configures metric registration.
type Options struct {
	// Registerer receives the collector's metrics. Nil selects
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Namespace prefixes every metric name. Default "scape".
	Namespace string
}

// DefaultOptions returns the default registration options.
var DefaultOptions = Options{
	Namespace: "scape",
}

// Collector bridges engine events to Prometheus counters and histograms.
type Collector struct {
	fitDuration     *prometheus.HistogramVec
	fitPoints       *prometheus.CounterVec
	landmarks       prometheus.Gauge
	layoutDuration  *prometheus.HistogramVec
	projectDuration *prometheus.HistogramVec
	projectPoints   prometheus.Counter
	snapshotOps     *prometheus.CounterVec
	snapshotBytes   *prometheus.CounterVec
}

// New creates a collector and registers its metrics.
func New(optFns ...func(o *Options)) *Collector {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	factory := promauto.With(opts.Registerer)

	return &Collector{
		fitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "fit_duration_seconds",
			Help:      "Duration of landmark training runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy", "status"}),
		fitPoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "fit_points_total",
			Help:      "Total dataset points seen by training runs",
		}, []string{"strategy"}),
		landmarks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Name:      "landmarks",
			Help:      "Landmark count of the most recent fit",
		}),
		layoutDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "layout_duration_seconds",
			Help:      "Duration of landmark layout runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"}),
		projectDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "project_duration_seconds",
			Help:      "Duration of projection runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		projectPoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "project_points_total",
			Help:      "Total points embedded by projection runs",
		}),
		snapshotOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "snapshot_operations_total",
			Help:      "Model snapshot saves and loads",
		}, []string{"op", "status"}),
		snapshotBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "snapshot_bytes_total",
			Help:      "Bytes written and read by model snapshots",
		}, []string{"op"}),
	}
}

// RecordFit implements scape.MetricsCollector.
func (c *Collector) RecordFit(strategy string, points, landmarks int, duration time.Duration, err error) {
	c.fitDuration.WithLabelValues(strategy, status(err)).Observe(duration.Seconds())
	c.fitPoints.WithLabelValues(strategy).Add(float64(points))
	if err == nil {
		c.landmarks.Set(float64(landmarks))
	}
}

// RecordLayout implements scape.MetricsCollector.
func (c *Collector) RecordLayout(provider string, duration time.Duration, err error) {
	c.layoutDuration.WithLabelValues(provider, status(err)).Observe(duration.Seconds())
}

// RecordProject implements scape.MetricsCollector.
func (c *Collector) RecordProject(points, k int, duration time.Duration, err error) {
	c.projectDuration.WithLabelValues(status(err)).Observe(duration.Seconds())
	if err == nil {
		c.projectPoints.Add(float64(points))
	}
}

// RecordSnapshotSave implements scape.MetricsCollector.
func (c *Collector) RecordSnapshotSave(bytes int64, duration time.Duration, err error) {
	c.snapshotOps.WithLabelValues("save", status(err)).Inc()
	if err == nil {
		c.snapshotBytes.WithLabelValues("save").Add(float64(bytes))
	}
}

// RecordSnapshotLoad implements scape.MetricsCollector.
func (c *Collector) RecordSnapshotLoad(bytes int64, duration time.Duration, err error) {
	c.snapshotOps.WithLabelValues("load", status(err)).Inc()
	if err == nil {
		c.snapshotBytes.WithLabelValues("load").Add(float64(bytes))
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
