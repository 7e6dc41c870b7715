package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hupe1980/synapgo"
	"github.com/hupe1980/synapgo/cache"
	"github.com/hupe1980/synapgo/config"
	"github.com/hupe1980/synapgo/dataset"
	"github.com/hupe1980/synapgo/poscache"
	"github.com/hupe1980/synapgo/poscache/dynamo"
	"github.com/hupe1980/synapgo/promcollector"
	"github.com/hupe1980/synapgo/resource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// session is an opened circuit together with everything it depends on.
type session struct {
	Circuit  *synapgo.Circuit
	Cache    *poscache.Cache // nil without a position cache
	Logger   *synapgo.Logger
	Prefetch synapgo.Prefetch

	closers []func() error
}

func newLogger(cfg *config.Config, w io.Writer) (*synapgo.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return synapgo.NewLogger(slog.NewJSONHandler(w, hopts)), nil
	}
	return synapgo.NewLogger(slog.NewTextHandler(w, hopts)), nil
}

// openSession opens the configured dataset. Logs go to logw.
func openSession(ctx context.Context, cfg *config.Config, logw io.Writer) (*session, error) {
	if cfg.Dataset == "" {
		return nil, fmt.Errorf("%w: no dataset given, use --dataset or SYNAPGO_DATASET", config.ErrInvalid)
	}
	prefetch, ok := synapgo.ParsePrefetch(cfg.Prefetch)
	if !ok {
		return nil, fmt.Errorf("%w: prefetch %q", config.ErrInvalid, cfg.Prefetch)
	}
	logger, err := newLogger(cfg, logw)
	if err != nil {
		return nil, err
	}

	rcCfg := resource.DefaultConfig()
	if cfg.MemoryLimit > 0 {
		rcCfg.MemoryLimitBytes = cfg.MemoryLimit
	}
	rcCfg.IOLimitBytesPerSec = cfg.IOLimit
	rc := resource.NewController(rcCfg)

	rt := &session{Logger: logger, Prefetch: prefetch}
	opts := []synapgo.Option{
		synapgo.WithLogger(logger),
		synapgo.WithResourceController(rc),
		synapgo.WithDefaultPrefetch(prefetch),
	}

	if cfg.MetricsAddr != "" {
		mc, err := rt.serveMetrics(cfg.MetricsAddr, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, synapgo.WithMetricsCollector(mc))
	}

	pc, err := rt.positionCache(ctx, cfg, rc, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if pc != nil {
		rt.Cache = pc
		opts = append(opts, synapgo.WithPositionCache(pc))
	}

	store, err := openStore(ctx, cfg, cfg.Dataset)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	c, err := synapgo.Open(ctx, store, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Circuit = c
	return rt, nil
}

func (rt *session) serveMetrics(addr string, logger *synapgo.Logger) (*promcollector.Collector, error) {
	reg := prometheus.NewRegistry()
	mc, err := promcollector.New(reg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	rt.closers = append(rt.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	logger.Info("serving metrics", "addr", addr)
	return mc, nil
}

func (rt *session) positionCache(ctx context.Context, cfg *config.Config, rc *resource.Controller, logger *synapgo.Logger) (*poscache.Cache, error) {
	var backend poscache.Backend
	switch cfg.Cache.Backend {
	case "", config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		backend = poscache.NewMemoryBackendWithController(cfg.Cache.MemoryBytes, rc)
	case config.CacheDisk:
		b, err := poscache.NewDiskBackend(cache.DiskCacheConfig{
			RootDir:      cfg.Cache.Dir,
			MaxSizeBytes: cfg.Cache.MaxBytes,
			Logger:       logger.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("disk position cache: %w", err)
		}
		rt.closers = append(rt.closers, b.Close)
		backend = b
	case config.CacheBlob:
		store, err := openStore(ctx, cfg, cfg.Cache.URI)
		if err != nil {
			return nil, fmt.Errorf("blob position cache: %w", err)
		}
		backend = poscache.NewBlobBackend(store)
	case config.CacheDynamoDB:
		var dopts []dynamo.Option
		if cfg.Cache.TTL > 0 {
			dopts = append(dopts, dynamo.WithTTL(cfg.Cache.TTL))
		}
		if cfg.S3.Region != "" {
			dopts = append(dopts, dynamo.WithRegion(cfg.S3.Region))
		}
		b, err := dynamo.New(ctx, cfg.Cache.Table, dopts...)
		if err != nil {
			return nil, fmt.Errorf("dynamodb position cache: %w", err)
		}
		backend = b
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", config.ErrInvalid, cfg.Cache.Backend)
	}

	compression, err := dataset.ParseCompression(cfg.Cache.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: cache.compression: %w", config.ErrInvalid, err)
	}
	popts := []poscache.Option{
		poscache.WithCompression(compression),
		poscache.WithLogger(logger.Logger),
	}
	if cfg.Cache.Namespace != "" {
		popts = append(popts, poscache.WithNamespace(cfg.Cache.Namespace))
	}
	return poscache.New(backend, popts...), nil
}

// Close closes the circuit, then the cache and metrics server.
func (rt *session) Close() error {
	var errs []error
	if rt.Circuit != nil {
		errs = append(errs, rt.Circuit.Close())
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}
