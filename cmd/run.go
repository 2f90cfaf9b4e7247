package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dicegame/config"
	"dicegame/events"
	"dicegame/store"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Run opens the store and keeps the background surfaces running until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	if err := cfg.ConfigureLogging(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"driver":      cfg.StorageDriver,
	}).Info("Starting dice game store...")

	bus := events.NewBus()

	opts := store.OptionsFromConfig(cfg)
	opts.EventBus = bus
	opts.Registerer = prometheus.DefaultRegisterer

	s, err := store.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Errorf("Error closing store: %v", err)
		}
	}()

	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Drain()

		events.NewNATSForwarder(nc, events.DefaultSubjectPrefix).Attach(bus)
		log.WithField("url", cfg.NATSURL).Info("Forwarding store events to NATS")
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = startMetricsServer(cfg.MetricsAddr, s.Metrics().Handler())
	}

	stopCleanup := func() {}
	if cfg.CleanupHours > 0 {
		stopCleanup = StartCleanupWorker(ctx, s, cfg.CleanupHours, cfg.CleanupInterval)
	}

	log.Info("Dice game store is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	stopCleanup()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error shutting down metrics server: %v", err)
		}
	}

	log.Info("Shutdown completed")
	return nil
}

func startMetricsServer(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server error: %v", err)
		}
	}()

	return server
}
