package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logrus "github.com/sirupsen/logrus"

	"fleet_tracker/internal/adapter"
	"fleet_tracker/internal/config"
	"fleet_tracker/internal/connectivity"
	"fleet_tracker/internal/logger"
	"fleet_tracker/internal/middleware"
	"fleet_tracker/internal/queue"
	"fleet_tracker/internal/routes"
	"fleet_tracker/internal/store"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	cfg := config.Load()

	// Open the embedded store; migration failure is fatal.
	st, err := store.Open(store.Options{Path: cfg.DBPath, DevMode: cfg.DevMode})
	if err != nil {
		log.Fatalf("store initialization failed: %v", err)
	}
	defer st.Close()

	tokens := middleware.NewTokenCodec(cfg.JWTSecret)
	a := adapter.New(st, tokens)

	q, err := queue.New(st, cfg.QueuePath, cfg.MaxReplayAttempts)
	if err != nil {
		log.Fatalf("offline queue initialization failed: %v", err)
	}

	probe := connectivity.New(cfg.ProbeURL, cfg.ProbeTimeout)
	probe.Start(cfg.ProbeInterval)
	defer probe.Stop()

	q.Start(cfg.DrainInterval, cfg.DrainLimit)
	defer q.Stop()

	// Drain immediately on offline→online transitions instead of waiting
	// for the next tick.
	go func() {
		for online := range probe.Subscribe() {
			if !online {
				continue
			}
			if n, err := q.Drain(cfg.DrainLimit); err != nil {
				logrus.WithError(err).Error("drain on reconnect failed")
			} else if n > 0 {
				logrus.WithField("applied", n).Info("drained queue on reconnect")
			}
		}
	}()

	bridge := routes.NewBridge(a, q, probe, cfg.DrainLimit)
	r := bridge.SetupRouter()

	// Wrap with CORS for the local web client
	handler := middleware.EnableCORS(r)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		log.Printf("🚀 Server running at %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
