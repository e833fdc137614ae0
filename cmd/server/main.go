package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chatvault/internal/audit"
	"chatvault/internal/collect"
	consentservice "chatvault/internal/consent/service"
	consentstore "chatvault/internal/consent/store"
	ingestservice "chatvault/internal/ingest/service"
	ingeststore "chatvault/internal/ingest/store"
	"chatvault/internal/platform/chatapi"
	"chatvault/internal/platform/config"
	"chatvault/internal/platform/crypto"
	"chatvault/internal/platform/database"
	"chatvault/internal/platform/health"
	"chatvault/internal/platform/kafka"
	"chatvault/internal/platform/logger"
	"chatvault/internal/platform/metrics"
	httptransport "chatvault/internal/transport/http"
	"chatvault/internal/transport/stream"
	psync "chatvault/pkg/platform/sync"
)

// main wires high-level dependencies and keeps the server lifecycle
// small. Business logic lives in the internal service packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// A key problem must stop the process before anything is ingested.
	cipher, err := crypto.New(cfg.EncryptionKey)
	if err != nil {
		log.Error("content cipher unusable", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pool != nil && cfg.MigrateOnBoot {
		if err := pool.Migrate(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	var (
		users consentservice.Store
		rows  ingestservice.Store
		tx    consentservice.TxRunner
		sink  audit.Store
	)
	if pool != nil {
		users = consentstore.NewPostgres(pool.DB())
		rows = ingeststore.NewPostgres(pool.DB())
		tx = consentservice.NewPostgresTx(pool.DB())
		sink = audit.NewPostgres(pool.DB())
	} else {
		log.Warn("no database configured, running with in-memory stores")
		memUsers := consentstore.New()
		memRows := ingeststore.New()
		users = memUsers
		rows = memRows
		tx = consentservice.NewMemoryTx(memUsers, memRows)
		sink = audit.NewInMemoryStore()
	}

	auditor := audit.NewPublisher(sink, audit.WithLogger(log))
	defer auditor.Close()

	m := metrics.New()
	locks := psync.NewShardedMutex()

	consentSvc := consentservice.NewService(users, tx, cipher, auditor, locks, log,
		consentservice.WithMetrics(m))
	ingestSvc := ingestservice.NewService(rows, consentSvc, cipher, locks, log,
		ingestservice.WithMetrics(m))

	var collector httptransport.CollectRunner
	if cfg.ChatAPIURL != "" {
		client, err := chatapi.New(chatapi.Config{BaseURL: cfg.ChatAPIURL, Token: cfg.ChatAPIToken})
		if err != nil {
			log.Error("chat api client misconfigured", "error", err)
			os.Exit(1)
		}
		directory, ok := users.(collect.SubjectDirectory)
		if !ok {
			log.Error("tracked-subject store does not support rank refresh")
			os.Exit(1)
		}
		collector = collect.NewCollector(
			client,
			chatapi.NewRanks(client, cfg.ChannelID),
			directory,
			ingestSvc,
			cfg.ChannelID,
			cfg.HistoryLimit,
			log,
		)
	} else {
		log.Info("chat api not configured, history collection disabled")
	}

	if cfg.Kafka.Brokers != "" {
		intake := stream.NewIntake(ingestSvc, cfg.ChannelID, log)
		consumer, err := kafka.New(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, intake.Handle, log)
		if err != nil {
			log.Error("kafka consumer setup failed", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("live intake stopped", "error", err)
			}
		}()
		log.Info("live intake started", "topic", cfg.Kafka.Topic)
	}

	checker := health.New()
	if pool != nil {
		checker.RegisterCheck("database", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return pool.Health(pingCtx)
		})
	}

	router := httptransport.NewRouter(
		httptransport.NewConsentHandler(consentSvc, log),
		httptransport.NewCollectHandler(collector, cfg.CollectToken, log),
		checker,
		log,
	)

	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
