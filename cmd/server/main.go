package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/bizsim/agegate/internal/checker"
	"github.com/bizsim/agegate/internal/client"
	"github.com/bizsim/agegate/internal/config"
	"github.com/bizsim/agegate/internal/handler"
	"github.com/bizsim/agegate/internal/middleware"
	agesignal "github.com/bizsim/agegate/internal/signal"
	"github.com/bizsim/agegate/internal/store"
	"github.com/bizsim/agegate/internal/telemetry"
	"github.com/bizsim/agegate/internal/util"
	"github.com/bizsim/agegate/internal/util/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(&cfg.Logger)
	defer logger.Sync()
	logger.Info("agegate starting (env=%s version=%s)", cfg.Env, cfg.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		logger.Fatal("storage: %v", err)
	}
	defer closeKV()

	var flagStore store.FlagStore
	if cfg.Storage.Encrypted {
		flagStore = store.NewEncrypted(kv)
	} else {
		flagStore = store.NewPlain(kv)
	}

	shipper, err := telemetry.NewKafkaShipper(cfg.Kafka)
	if err != nil {
		logger.Fatal("telemetry: %v", err)
	}
	shipper.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		shipper.Stop(shutdownCtx)
	}()

	bridge := agesignal.NewHTTPBridge(agesignal.HTTPBridgeConfig{
		Endpoint: cfg.Bridge.Endpoint,
		Timeout:  cfg.Bridge.Timeout,
	})

	chk := checker.New(bridge, flagStore, cfg.Model(), checker.Options{
		SoftwareVersion: cfg.Version,
		MaxAttempts:     cfg.Cache.MaxAttempts,
		RetryBase:       cfg.Cache.RetryBase,
		CacheMaxAge:     cfg.Cache.MaxAge,
	}, shipper)

	jwtManager := util.NewJWTManager(cfg.JWTSigningKey, "agegate")

	flagsHandler := handler.NewFlagsHandler(chk)
	healthHandler := handler.NewHealthHandler(cfg, &handler.StorageHealthChecker{Store: flagStore})

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", healthHandler.ServeHTTP)
	r.Get("/livez", healthHandler.LivenessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/flags", flagsHandler.GetFlags)
		r.Post("/check", flagsHandler.TriggerCheck)
		r.With(middleware.RequireAdmin(jwtManager)).Delete("/cache", flagsHandler.ClearCache)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
}

// openKV builds the configured persistence backend and a close function.
func openKV(ctx context.Context, cfg *config.Config) (store.KV, func(), error) {
	switch cfg.Storage.Backend {
	case "badger":
		kv, err := store.OpenBadger(cfg.Storage.Path, false)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil

	case "redis":
		rc, err := client.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisKV(rc, cfg.Storage.Namespace), func() { _ = rc.Close() }, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}
		kv, err := store.NewPostgresKV(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return kv, func() { _ = db.Close() }, nil

	case "memory":
		return store.NewMemoryKV(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
