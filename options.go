package scape

import (
	"log/slog"

	"github.com/scapelab/scape/codec"
	"github.com/scapelab/scape/layout"
	"github.com/scapelab/scape/resource"
	"github.com/scapelab/scape/snapshot"
)

type options struct {
	provider         layout.Provider
	dims             int
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
	snapshotOptions  []func(*snapshot.Options)
}

// Option configures engine constructor behavior.
type Option func(*options)

// WithLayout selects the layout provider and the embedding dimensionality
// (2 or 3). The default is the grid-derived provider in 2D, which requires
// a gridded generation strategy.
func WithLayout(p layout.Provider, dims int) Option {
	return func(o *options) {
		if p != nil {
			o.provider = p
		}
		o.dims = dims
	}
}

// WithCodec configures the codec used for snapshot metadata sections.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithSnapshotOptions configures model snapshot encoding (compression,
// float16 codebooks). Applied on every SaveModel call.
func WithSnapshotOptions(optFns ...func(*snapshot.Options)) Option {
	return func(o *options) {
		o.snapshotOptions = optFns
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &scape.BasicMetricsCollector{}
//	s := scape.New(gen, scape.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := scape.NewJSONLogger(slog.LevelInfo)
//	s := scape.New(gen, scape.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController bounds the engine's worker parallelism, managed
// memory and IO throughput. Nil means no limits beyond GOMAXPROCS workers.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		provider:         layout.FromTopology,
		dims:             2,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.codec == nil {
		o.codec = codec.Default
	}
	return o
}
