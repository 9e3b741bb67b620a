package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bibformat/internal/cache"
	"bibformat/internal/config"
	"bibformat/internal/engine"
	"bibformat/internal/errsink"
	"bibformat/internal/formaterror"
	"bibformat/internal/metrics"
	"bibformat/internal/reload"
	"bibformat/internal/stores"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("shutting down gracefully...")
		cancel()
	}()

	if err := runApplication(ctx, cfg); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}

// runApplication wires every collaborator the engine needs, starts the
// reload watchers and the metrics server, and blocks until ctx is
// cancelled — the same shape as the teacher's runApplication.
func runApplication(ctx context.Context, cfg *config.Config) error {
	errsinkManager, err := errsink.NewManager(errsink.Config{
		Backends: cfg.Backends,
		FilePath: cfg.FilePath,
		LokiURL:  cfg.LokiURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize error sink: %w", err)
	}
	defer errsinkManager.Shutdown()

	// Hijack the standard logger so operational errors land in the same
	// backends as per-record FormatErrors.
	slog.SetDefault(slog.New(errsink.NewLogHandler(slog.LevelInfo, errsinkManager)))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// MemStore/MemTagNameTable stand in for a real catalog backend here;
	// a production deployment wires its own stores.RecordStore,
	// stores.KBStore and stores.TagNameTable.
	store := stores.NewMemStore()
	tagTable := stores.NewMemTagNameTable()

	cm := cache.NewManager()
	eng := engine.New(engine.Options{
		TemplatesDir:  cfg.TemplatesDir,
		OutputsDir:    cfg.OutputsDir,
		Locales:       cfg.Locales,
		DefaultLocale: cfg.DefaultLocale,
		CacheSize:     cfg.CacheSize,
		Store:         store,
		KB:            store,
		TagTable:      tagTable,
		ErrorSink:     multiSink{errsinkManager, m},
		Metrics:       m,
		Stats:         m,
	}, cm)

	if cfg.ReloadEnabled {
		if err := reload.Watch(ctx, cfg.TemplatesDir, cfg.TemplateExtensions, eng.Templates); err != nil {
			slog.Warn("template reload watcher failed to start", "error", err)
		}
		if err := reload.Watch(ctx, cfg.OutputsDir, cfg.OutputExtensions, eng.Outputs); err != nil {
			slog.Warn("output reload watcher failed to start", "error", err)
		}
	}

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	slog.Info("bibformat engine ready", "templates", cfg.TemplatesDir, "outputs", cfg.OutputsDir)

	<-ctx.Done()
	slog.Info("context cancelled, initiating shutdown sequence...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ReloadDebounce)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}

// multiSink broadcasts every registered FormatError to both the durable
// error sink and the metrics counters.
type multiSink struct {
	external *errsink.Manager
	metrics  *metrics.Metrics
}

func (s multiSink) Register(err *formaterror.FormatError) {
	s.external.Register(err)
	s.metrics.Register(err)
}
