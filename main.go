package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/withObsrvr/xrpl-index-service/backend"
	"github.com/withObsrvr/xrpl-index-service/feed"
	"github.com/withObsrvr/xrpl-index-service/ingester"
	"github.com/withObsrvr/xrpl-index-service/rpc"
	"github.com/withObsrvr/xrpl-index-service/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting",
		zap.String("service", cfg.Service.Name),
		zap.Int("port", cfg.Service.Port),
		zap.String("source", cfg.Source.Endpoint))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, cfg.GetPostgresConnectionString())
	if err != nil {
		log.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal("ping postgres", zap.Error(err))
	}
	log.Info("connected to postgres",
		zap.String("host", cfg.Postgres.Host),
		zap.String("database", cfg.Postgres.Database))

	reg := prometheus.DefaultRegisterer

	// Writer and schema
	writer := ingester.NewWriter(pool, log.Named("ingester"), reg)
	if err := writer.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	// Feed: executor + subscription manager over the read backend
	reader := backend.NewPostgres(pool)
	exec := feed.NewExecutor(cfg.Feed.Workers, reg)
	subs := feed.NewSubscriptionManager(reader, exec, log.Named("feed"))

	// Ingestion pipeline: upstream source -> writer -> feed
	source := ingester.NewSource(cfg.Source.Endpoint, log.Named("source"))
	runner := ingester.NewRunner(writer, subs, log.Named("runner"))
	go func() {
		if err := source.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("source stopped", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		if err := runner.Run(ctx, source.Ledgers()); err != nil && ctx.Err() == nil {
			log.Error("ingestion stopped", zap.Error(err))
			cancel()
		}
	}()

	// RPC router and connection handler
	router := rpc.NewRouter(log.Named("rpc"))
	router.Register("subscribe", rpc.NewSubscribeHandler(subs))
	router.Register("unsubscribe", rpc.NewUnsubscribeHandler(subs))

	policy := server.PolicyParallel
	if cfg.Server.Policy == "sequential" {
		policy = server.PolicySequential
	}
	handler := server.NewConnectionHandler(policy, cfg.Server.MaxParallelRequests, log.Named("server"))
	handler.OnWs(router.WSHandler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: handler,
	}
	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	healthServer := NewHealthServer(cfg.Service.HealthPort, subs, log.Named("health"))
	if err := healthServer.Start(); err != nil {
		log.Fatal("start health server", zap.Error(err))
	}
	defer healthServer.Stop() //nolint:errcheck

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		log.Info("received shutdown signal")
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	// Graceful shutdown, reverse dependency order
	handler.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}
	cancel()
	exec.Stop()

	log.Info("shutdown complete")
}

func buildLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Logging.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
