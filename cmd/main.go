package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avask/reqkey/internal/config"
	"github.com/avask/reqkey/internal/events"
	"github.com/avask/reqkey/internal/logging"
	"github.com/avask/reqkey/internal/metrics"
	"github.com/avask/reqkey/internal/repo"
	"github.com/avask/reqkey/internal/router"
	"github.com/avask/reqkey/internal/service"
)

func main() {

	configPath := flag.String("config", os.Getenv("REQKEY_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	l := logging.New(cfg.Log)

	// The auth middleware reads the token from the environment; export a
	// file-provided token for it.
	if cfg.Auth.Token != "" {
		if err := os.Setenv("REQKEY_API_TOKEN", cfg.Auth.Token); err != nil {
			l.Error("export api token", "err", err)
			os.Exit(1)
		}
	}

	var store repo.RequestRepo
	switch cfg.Store.Backend {
	case "postgres":
		var pg *repo.PostgresRepo
		if cfg.Store.DSN != "" {
			pg, err = repo.NewPostgresRepo(cfg.Store.DSN)
		} else {
			pg, err = repo.NewPostgresRepoFromEnv()
		}
		if err != nil {
			l.Error("connect to postgres", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	default:
		store = repo.NewInMemoryRequestRepo()
	}

	metrics.Register()

	hub := events.NewHub(cfg.Keys.EventBuffer, func(n int) {
		metrics.EventSubscribers.Set(float64(n))
	})

	svc := service.NewKeying(l, store, hub, nil, cfg.Keys.RequestIDLength)
	r := router.New(l, svc, store, hub)

	// Validated by config.Load.
	readTimeout, _ := time.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.Server.WriteTimeout)
	idleTimeout, _ := time.ParseDuration(cfg.Server.IdleTimeout)
	shutdownTimeout, _ := time.ParseDuration(cfg.Server.ShutdownTimeout)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		l.Info("starting reqkey API", "addr", server.Addr, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	l.Info("received signal, graceful shutdown", "sig", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		l.Error("shutdown", "err", err)
	}
}
