package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/JLcilliers/MileIQ-Migration/internal/adapters/http"
	"github.com/JLcilliers/MileIQ-Migration/internal/bootstrap"
	"github.com/JLcilliers/MileIQ-Migration/internal/config"
	"github.com/JLcilliers/MileIQ-Migration/internal/observability/logging"
)

const serviceName = "hub-api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !loopback(cfg.APIAddr) {
		log.Fatalf("API_ADDR %q must bind a loopback address: the dashboard serves a single local user", cfg.APIAddr)
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Logger: logger})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	contract, err := httpadapter.LoadContract(ctx)
	if err != nil {
		log.Fatalf("load api contract: %v", err)
	}

	router := httpadapter.NewRouter(cfg, httpadapter.RouterDeps{
		Hub:           app.Hub,
		Progress:      app.Progress,
		Session:       app.Session,
		Metrics:       app.Metrics,
		Notifications: app.Notifications,
		Contract:      contract,
		HTTPMetrics:   app.HTTPMetrics,
		Logger:        logger,
	}).Handler()
	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Sign-in waits on the user in the browser.
		WriteTimeout: cfg.ConsentTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		app.Scheduler.Run(ctx)
	}()

	go func() {
		logger.Info("api_listening", "addr", cfg.APIAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.APIShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_failed", "error", err)
	}
	<-schedulerDone
	logger.Info("api_stopped")
}

func loopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
