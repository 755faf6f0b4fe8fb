package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"prendaml/artifacts"
	"prendaml/config"
	qhttp "prendaml/http"
	"prendaml/logging"
	"prendaml/monitoring"
	"prendaml/predict"
)

func main() {
	// Look for config in root even if run from cmd/
	configPath := config.Locate("config.yaml")

	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Load the model bundle; the server does not start without it
	src, closeSource, err := artifacts.Open(cfg.Artifacts.Source, cfg.Artifacts.Path, cfg.Artifacts.Compressed)
	if err != nil {
		logger.Fatal("failed to open artifacts", zap.Error(err))
	}
	defer closeSource()

	registry := predict.NewRegistry()
	snap, err := registry.Reload(src)
	if err != nil {
		logger.Fatal("failed to load models", zap.String("source", src.String()), zap.Error(err))
	}
	logVariants(logger, snap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitoring.NewMetricsCollector()
	metrics.RecordReload(true, len(snap.Variants))
	go metrics.Run(ctx, 10*time.Second)

	recent, err := monitoring.NewRecentPredictions(cfg.Monitoring.RecentSize)
	if err != nil {
		logger.Fatal("invalid monitoring.recent_size", zap.Error(err))
	}

	var hub *monitoring.WebSocketHub
	if cfg.Monitoring.Websocket {
		hub = monitoring.NewWebSocketHub(logger)
		go hub.Run(ctx)
	}

	var reloadMu sync.Mutex
	reload := func() error {
		reloadMu.Lock()
		defer reloadMu.Unlock()

		snap, err := registry.Reload(src)
		metrics.RecordReload(err == nil, registryLen(registry))
		if err != nil {
			logger.Error("reload failed, keeping previous models", zap.Error(err))
			if hub != nil {
				hub.PublishReload(monitoring.ReloadEvent{Source: src.String(), Error: err.Error()})
			}
			return err
		}
		logVariants(logger, snap)
		if hub != nil {
			hub.PublishReload(monitoring.ReloadEvent{Source: snap.Source, Variants: variantNames(snap)})
		}
		return nil
	}

	// 3. Watch the bundle directory for new artifacts
	if cfg.Artifacts.Watch {
		watcher, err := artifacts.NewWatcher(cfg.Artifacts.Path, cfg.Artifacts.Debounce, logger)
		if err != nil {
			logger.Fatal("failed to watch artifacts", zap.Error(err))
		}
		go watcher.Run(ctx, func() { reload() })
	}

	// 4. Start HTTP server
	api := qhttp.NewAPI(qhttp.Deps{
		Registry: registry,
		Metrics:  metrics,
		Recent:   recent,
		Hub:      hub,
		Reload:   reload,
		Logger:   logger,
	})
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, api)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("exiting")
}

func logVariants(logger *zap.Logger, snap *predict.Snapshot) {
	for _, v := range snap.Variants {
		logger.Info("variant loaded",
			zap.String("variant", v.Name()),
			zap.String("route", v.Route()),
			zap.String("body", v.Body()),
		)
	}
	logger.Info("models loaded", zap.String("source", snap.Source), zap.Int("variants", len(snap.Variants)))
}

func variantNames(snap *predict.Snapshot) []string {
	names := make([]string, 0, len(snap.Variants))
	for _, v := range snap.Variants {
		names = append(names, v.Name())
	}
	return names
}

func registryLen(registry *predict.Registry) int {
	if snap := registry.Snapshot(); snap != nil {
		return len(snap.Variants)
	}
	return 0
}
