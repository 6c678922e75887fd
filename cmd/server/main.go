package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adsb-ingest-service/internal/domain/repository"
	"adsb-ingest-service/internal/infrastructure/config"
	"adsb-ingest-service/internal/infrastructure/feed"
	"adsb-ingest-service/internal/infrastructure/persistence"
	"adsb-ingest-service/internal/infrastructure/router"
	stateRepo "adsb-ingest-service/internal/interface/repository"
	"adsb-ingest-service/internal/usecase"
	"adsb-ingest-service/pkg/logger"
	"adsb-ingest-service/pkg/metrics"
	"adsb-ingest-service/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Error("Failed to load config", "error", err)
		return 1
	}

	// Create logger
	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	log.Info("Starting ADS-B ingest service", "version", cfg.AppVersion, "feed", cfg.FeedAddr(), "backend", cfg.SinkBackend)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open store", "backend", cfg.SinkBackend, "error", err)
		return 1
	}
	defer closeStore()

	m := metrics.NewMetrics("adsb_ingest", nil)

	messageRouter := router.NewMessageRouter(log)
	messageRouter.Register(utils.NewSBSParser(nil))

	processor := usecase.NewIngestProcessor(usecase.IngestConfig{
		BatchSize:         cfg.BulkSize,
		FlushTimeout:      cfg.FlushTimeout,
		FlushRetries:      cfg.FlushRetries,
		FlushRetryBackoff: cfg.FlushRetryBackoff,
	}, messageRouter, repo, m, log)

	// Set up HTTP server for metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Healthy"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	exitCode := 0
	if err := ingest(ctx, cfg, processor, log); err != nil {
		log.Error("Ingest stopped", "error", err)
		exitCode = 1
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	log.Info("ADS-B ingest service stopped")
	return exitCode
}

// ingest runs the processor against the feed until ctx is cancelled.
// With a reconnect delay configured, feed failures are retried after
// the delay; otherwise the first failure ends the run.
func ingest(ctx context.Context, cfg *config.Config, processor *usecase.IngestProcessor, log logger.Logger) error {
	opts := feed.Options{
		ReadBufferSize: cfg.FeedReadBuffer,
		DialTimeout:    cfg.FeedDialTimeout,
	}

	for {
		err := runOnce(ctx, cfg.FeedAddr(), opts, processor, log)
		if err == nil || ctx.Err() != nil {
			return shutdownError(err)
		}
		if cfg.ReconnectDelay <= 0 {
			return err
		}

		log.Warn("Feed session ended, reconnecting", "error", err, "delay", cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.ReconnectDelay):
		}
	}
}

// shutdownError keeps store failures of a cancelled session; feed errors
// caused by the shutdown itself are expected
func shutdownError(err error) error {
	if errors.Is(err, usecase.ErrStoreUnavailable) {
		return err
	}
	return nil
}

func runOnce(ctx context.Context, addr string, opts feed.Options, processor *usecase.IngestProcessor, log logger.Logger) error {
	conn, err := feed.Dial(ctx, addr, opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info("Connected to feed", "remote", conn.RemoteAddr())
	return processor.Run(ctx, conn)
}

// openStore connects the configured sink backend and returns its
// repository with a function releasing the connection.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.AircraftStateRepository, func(), error) {
	switch cfg.SinkBackend {
	case config.BackendPostgres:
		log.Info("Connecting to PostgreSQL")
		db, err := persistence.NewPostgresDB(ctx, cfg.PostgresURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := persistence.ClosePostgresDB(db); err != nil {
				log.Error("PostgreSQL close error", "error", err)
			}
		}
		return stateRepo.NewGormAircraftStateRepository(ctx, db, cfg.StoreCollection, log), closeFn, nil

	case config.BackendRedis:
		log.Info("Connecting to Redis", "addr", cfg.RedisAddr)
		rdb, err := persistence.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				log.Error("Redis close error", "error", err)
			}
		}
		return stateRepo.NewRedisAircraftStateRepository(rdb, cfg.StoreCollection, cfg.RedisTTL), closeFn, nil

	default:
		log.Info("Connecting to MongoDB")
		client, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				log.Error("MongoDB disconnect error", "error", err)
			}
		}
		db := persistence.GetDatabase(client, cfg.MongoDB)
		return stateRepo.NewMongoAircraftStateRepository(ctx, db, cfg.StoreCollection, log), closeFn, nil
	}
}
