package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	"github.com/jwalitptl/hospital-api/internal/worker"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logger.InfoLevel
	}
	workerID := "worker-" + uuid.NewString()[:8]
	log := logger.NewLogger(&logger.Config{
		Level:   level,
		Output:  os.Stdout,
		Console: cfg.Log.Console,
	}).WithFields(map[string]interface{}{"worker_id": workerID})

	// The dispatcher claims rows with SELECT ... FOR UPDATE SKIP LOCKED, so
	// several workers can share one database.
	if cfg.Database.Driver != "postgres" {
		log.Fatal(nil, "the notification worker requires the postgres driver")
	}
	if cfg.Redis.URL == "" {
		log.Fatal(nil, "the notification worker requires redis.url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New("hospital", prometheus.DefaultRegisterer)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}, log, m)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	health := setupHealthCheck(cfg.Notifications.HealthPort, db.PingContext, log)

	dispatcher := worker.NewDispatcher(postgres.NewRepositories(db), broker, worker.DispatcherConfig{
		BatchSize:     cfg.Notifications.BatchSize,
		PollInterval:  cfg.Notifications.PollInterval,
		RetryAttempts: cfg.Notifications.RetryAttempts,
		RetryDelay:    cfg.Notifications.RetryDelay,
		Channel:       cfg.Notifications.Channel,
	}, log, m)

	// Start returns once ctx is cancelled.
	dispatcher.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health server forced to shutdown")
	}
	log.Info("worker exited properly")
}

func setupHealthCheck(port int, ping func(context.Context) error, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}
