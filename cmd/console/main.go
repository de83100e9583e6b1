package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/config"
	"devconsole/internal/infrastructure/cache"
	"devconsole/internal/infrastructure/kafka"
	"devconsole/internal/infrastructure/logging"
	"devconsole/internal/infrastructure/memory"
	"devconsole/internal/infrastructure/mysql"
	"devconsole/internal/infrastructure/seed"
	"devconsole/internal/infrastructure/sqlite"
	"devconsole/internal/infrastructure/telemetry"
	"devconsole/internal/interfaces/httpapi"
	"devconsole/internal/notification"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logFile, err := logging.Init(logging.Config{
		Service:    "devconsole",
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "devconsole", version, cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown error", "err", err)
		}
	}()

	baseStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	var store application.Store = baseStore
	if cached, err := cache.NewStore(baseStore, cache.Config{Addr: cfg.RedisAddr, TTL: cfg.CacheTTL}); err != nil {
		slog.Warn("redis cache disabled", "err", err)
	} else {
		store = cached
		if cached.Enabled() {
			slog.Info("redis cache enabled", "addr", cfg.RedisAddr)
		}
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("store close error", "err", err)
		}
	}()

	var events application.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			log.Fatalf("kafka error: %v", err)
		}
		defer publisher.Close()
		events = publisher
		slog.Info("audit events enabled", "topic", cfg.KafkaTopic)
	}

	metrics := httpapi.NewMetrics()
	ledger, err := application.NewLedger(store, events, metrics, application.LedgerConfig{StrictTransitions: cfg.StrictTransitions})
	if err != nil {
		log.Fatalf("ledger error: %v", err)
	}
	history, err := application.NewHistoryLog(store, events)
	if err != nil {
		log.Fatalf("history error: %v", err)
	}
	interpreter, err := application.NewInterpreter(ledger, history, metrics)
	if err != nil {
		log.Fatalf("interpreter error: %v", err)
	}
	directory, err := application.NewDirectory(store)
	if err != nil {
		log.Fatalf("directory error: %v", err)
	}

	seedFile, err := seed.Read(cfg.SeedFile)
	if err != nil {
		log.Fatalf("seed error: %v", err)
	}
	if _, err := seed.Apply(context.Background(), directory, seedFile, time.Now()); err != nil {
		log.Fatalf("seed error: %v", err)
	}

	broadcaster := notification.NewBroadcaster(notification.Config{
		Interval: cfg.NotifyInterval,
		Observer: metrics,
	})

	httpServer, err := httpapi.NewServer(cfg, httpapi.Services{
		Interpreter: interpreter,
		Ledger:      ledger,
		History:     history,
		Directory:   directory,
		Broadcaster: broadcaster,
		Store:       store,
	}, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		log.Fatalf("http server error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("console starting", "version", version, "driver", cfg.DBDriver, "notify_interval", cfg.NotifyInterval)
	if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("http server error", "err", err)
	}
	slog.Info("console stopped")
}

func openStore(cfg config.Config) (application.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return sqlite.NewRepository(cfg.SQLitePath)
	case config.DriverMySQL:
		return mysql.NewRepository(cfg.DBDSN)
	default:
		return memory.NewRepository(), nil
	}
}
