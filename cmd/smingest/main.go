// Command smingest consumes strong-motion file notifications from Kafka, decodes
// and groups the referenced recordings, and publishes recording groups to the
// sink topic. Health, readiness, metrics, and the supported format list are
// served over HTTP.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/strong-motion-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/strong-motion-etl/internal/adapter/kafka"
	"github.com/couchcryptid/strong-motion-etl/internal/adapter/memcache"
	"github.com/couchcryptid/strong-motion-etl/internal/config"
	"github.com/couchcryptid/strong-motion-etl/internal/dialect"
	"github.com/couchcryptid/strong-motion-etl/internal/grouping"
	"github.com/couchcryptid/strong-motion-etl/internal/observability"
	"github.com/couchcryptid/strong-motion-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	root := cfg.DataRoot
	if root == "" {
		root = "/"
	}
	fsys := os.DirFS(root)

	registry := dialect.Default()
	opts := dialect.Options{Units: cfg.DecodeUnits, StationTypes: cfg.StationTypes}

	var decoder pipeline.Decoder = pipeline.NewFileDecoder(registry, fsys, opts, cfg.DecodeTimeout)
	decoder = withCache(decoder, fsys, cfg, metrics, logger)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, decoder, writer, logger, metrics, cfg.BatchSize,
		pipeline.WithWorkers(cfg.DecodeWorkers),
		pipeline.WithGrouper(grouping.Grouper{Mode: cfg.MatchMode, ResolveChannels: cfg.ResolveChannels}),
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, registry.Names(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingest pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// withCache wraps the decoder in an LRU cache unless DECODE_CACHE_SIZE is 0.
func withCache(d pipeline.Decoder, fsys fs.FS, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) pipeline.Decoder {
	if cfg.DecodeCacheSize == 0 {
		logger.Info("decode cache disabled")
		return d
	}
	logger.Info("decode cache enabled", "cache_size", cfg.DecodeCacheSize)
	return memcache.NewCachedDecoder(d, fsys, cfg.DecodeCacheSize, metrics)
}
