package main

import (
	"context"
	stlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dante-gpu/production-scheduler/internal/batch"
	"github.com/dante-gpu/production-scheduler/internal/config"
	"github.com/dante-gpu/production-scheduler/internal/consulreg"
	"github.com/dante-gpu/production-scheduler/internal/cost"
	"github.com/dante-gpu/production-scheduler/internal/httpapi"
	"github.com/dante-gpu/production-scheduler/internal/logging"
	"github.com/dante-gpu/production-scheduler/internal/natsclient"
	"github.com/dante-gpu/production-scheduler/internal/server"
	"github.com/dante-gpu/production-scheduler/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		stlog.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		stlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Production scheduling service starting up...")

	consulClient, err := consulreg.Connect(cfg.ConsulAddress, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Consul agent", zap.Error(err))
	}

	serviceID := config.GenerateServiceID(cfg.ServiceIDPrefix)
	logger.Info("Generated unique service ID for Consul", zap.String("service_id", serviceID))

	if err := consulreg.RegisterService(consulClient, cfg, serviceID, logger); err != nil {
		logger.Fatal("Failed to register service with Consul", zap.Error(err))
	}
	logger.Info("Successfully registered service with Consul",
		zap.String("service_name", cfg.ServiceName),
		zap.String("service_id", serviceID),
	)

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbPool, err := pgxpool.New(dbCtx, cfg.PostgresDSN)
	dbCancel()
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer dbPool.Close()

	runStore := store.NewPostgresRunStore(dbPool, logger)
	if err := runStore.Initialize(context.Background()); err != nil {
		logger.Fatal("Failed to initialize run store", zap.Error(err))
	}

	nc, err := natsclient.Connect(cfg.NatsAddress, logger)
	if err != nil {
		logger.Error("Failed to establish initial NATS connection. Service may be degraded.", zap.Error(err))
	}
	if nc != nil {
		defer nc.Close()
		logger.Info("Successfully connected to NATS", zap.String("address", cfg.NatsAddress))

		if js, jsErr := natsclient.ConnectJetStream(nc, logger); jsErr == nil {
			if err := natsclient.EnsureStream(js, cfg.NatsStreamName, []string{cfg.NatsBatchSubmitSubject}, logger); err != nil {
				logger.Error("Failed to ensure NATS stream", zap.Error(err))
			}
		}

		consumer, err := batch.NewConsumer(nc, cfg, runStore, logger)
		if err != nil {
			logger.Error("Failed to create batch consumer", zap.Error(err))
		} else if err := consumer.StartConsuming(); err != nil {
			logger.Error("Failed to start batch consumer", zap.Error(err))
		} else {
			defer consumer.Stop()
		}
	} else {
		logger.Warn("Running without NATS connection. Batch consumption will be unavailable.")
	}

	estimator := cost.NewEstimator(logger)
	isNATSConnected := func() bool { return nc != nil && nc.Status() == nats.CONNECTED }

	router := httpapi.NewRouter(cfg, runStore, estimator, isNATSConnected, logger)
	srv := server.NewServer(cfg, router, logger)

	go srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	if err := consulreg.DeregisterService(consulClient, serviceID, logger); err != nil {
		logger.Error("Error deregistering service from Consul", zap.Error(err))
	} else {
		logger.Info("Successfully deregistered service from Consul")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Stop(ctx)

	if nc != nil {
		logger.Info("Draining NATS connection...")
		if err := nc.Drain(); err != nil {
			logger.Error("Error draining NATS connection", zap.Error(err))
		}
		logger.Info("NATS connection drained and closed")
	}

	logger.Info("Production scheduling service gracefully stopped")
}
