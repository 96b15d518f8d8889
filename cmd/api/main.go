package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/spendbook/internal/api/handlers"
	"github.com/dvloznov/spendbook/internal/app"
	"github.com/dvloznov/spendbook/internal/config"
	"github.com/dvloznov/spendbook/internal/jobs/inmemory"
	"github.com/dvloznov/spendbook/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (default ~/.config/spendbook/config.yaml)")
		port       = flag.String("port", "", "HTTP server port (overrides http.port)")
		workers    = flag.Int("workers", 2, "Number of concurrent ingest workers")
	)
	flag.Parse()

	bootLog := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.HTTP.Port = *port
	}

	log, err := logger.NewWithOptions(os.Stdout, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid log settings")
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", *workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, a.IngestHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	router := handlers.NewRouter(handlers.Deps{
		Catalog:      a.Catalog,
		Statements:   a.Statements,
		Transactions: a.Transactions,
		Analytics:    a.Analytics,
		Jobs:         jobStore,
		Queue:        jobQueue,
		Documents:    a.Documents,
		Sink:         a.Sink,
		Log:          log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.HTTP.Port).
			Str("store", cfg.Store.Driver).
			Str("provider", cfg.Extraction.Provider).
			Bool("uploads", a.Documents != nil).
			Bool("publish", a.Sink != nil).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight jobs see cancellation and mark their statements as error.
	cancelWorker()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
