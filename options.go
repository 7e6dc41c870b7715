package synapgo

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo/resource"
	"github.com/hupe1980/synapgo/source"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	cache            source.PositionCache
	rc               *resource.Controller
	memoryLimit      int64
	prefetch         Prefetch
	tracerProvider   trace.TracerProvider
}

// Option configures a Circuit.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for load stages,
// cache lookups and allocations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &synapgo.BasicMetricsCollector{}
//	c, _ := synapgo.NewCircuit(src, synapgo.WithMetricsCollector(metrics))
//	// ... load synapses ...
//	stats := metrics.GetStats()
//	fmt.Printf("attribute loads: %d, cache hits: %d\n", stats.AttributeCount, stats.CacheHits)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
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

// WithPositionCache puts a cache in front of the position source.
// See package poscache for implementations.
func WithPositionCache(cache source.PositionCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithMemoryLimit bounds the bytes held by loaded columns.
// Ignored when WithResourceController is also given.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithResourceController shares a resource controller between circuits.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithDefaultPrefetch sets the stages loaded eagerly for every request
// that does not pass WithPrefetch.
func WithDefaultPrefetch(p Prefetch) Option {
	return func(o *options) {
		o.prefetch = p
	}
}

// WithTracerProvider enables OpenTelemetry spans around load stages.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		tracerProvider:   noop.NewTracerProvider(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.rc == nil {
		cfg := resource.DefaultConfig()
		if o.memoryLimit > 0 {
			cfg.MemoryLimitBytes = o.memoryLimit
		}
		o.rc = resource.NewController(cfg)
	}
	return o
}

type request struct {
	filter      *roaring.Bitmap
	prefetch    Prefetch
	hasPrefetch bool
}

// RequestOption configures a single synapse request.
type RequestOption func(*request)

// WithFilter keeps only synapses whose peer is in ids.
// An empty or nil bitmap keeps every synapse.
func WithFilter(ids *roaring.Bitmap) RequestOption {
	return func(r *request) {
		r.filter = ids
	}
}

// WithPrefetch loads the given stages before the request returns.
func WithPrefetch(p Prefetch) RequestOption {
	return func(r *request) {
		r.prefetch = p
		r.hasPrefetch = true
	}
}

func applyRequestOptions(def Prefetch, optFns []RequestOption) request {
	r := request{prefetch: def}
	for _, fn := range optFns {
		if fn != nil {
			fn(&r)
		}
	}
	return r
}
