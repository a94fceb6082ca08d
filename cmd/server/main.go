package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dgallion1/docreader/internal/api"
	"github.com/dgallion1/docreader/internal/config"
	"github.com/dgallion1/docreader/internal/events"
	"github.com/dgallion1/docreader/internal/hotkey"
	"github.com/dgallion1/docreader/internal/parser"
	"github.com/dgallion1/docreader/internal/pathstore"
	"github.com/dgallion1/docreader/internal/pipeline"
	"github.com/dgallion1/docreader/internal/reader"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Position store: remote when configured, otherwise in memory.
	var store pipeline.PositionStore = pipeline.NewMemoryStore()
	var ps *pathstore.Client
	if cfg.PathstoreURL != "" {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		store = ps
		log.Info("using pathstore for reading positions", "url", cfg.PathstoreURL)
	} else {
		log.Warn("PATHSTORE_URL not set, reading positions will not survive a restart")
	}

	writer := pipeline.NewWriter(store, cfg.PersistWorkers, cfg.PersistTimeout, log.With("component", "writer"))
	writer.Start(ctx)

	broker := events.NewBroker()

	engine := reader.NewEngine(reader.Options{
		LineSize:              cfg.LineSize,
		MinEncodingConfidence: cfg.MinEncodingConfidence,
		MaxDocumentBytes:      cfg.MaxDocumentBytes,
		Parser:                parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
		Store:                 store,
		Writer:                writer,
		Broker:                broker,
		Log:                   log.With("component", "reader"),
	})

	keys, err := hotkey.NewDispatcher(engine, cfg.Shortcuts, broker, log.With("component", "hotkey"))
	if err != nil {
		log.Error("invalid hotkey bindings", "error", err, "goos", runtime.GOOS)
		os.Exit(1)
	}

	srv := api.NewServer(api.Deps{
		Engine:  engine,
		Hotkeys: keys,
		Broker:  broker,
		Writer:  writer,
		Store:   store,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: /api/events streams indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Ends open event streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		keys.Wait()
		writer.Stop()
		if ps != nil {
			ps.Close()
		}
	}()

	log.Info("starting docreader", "port", cfg.Port, "line_size", cfg.LineSize)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	// Wait for pending positions to be flushed.
	<-stopped
}
