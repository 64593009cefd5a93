package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/config"
	appointmentHandler "github.com/jwalitptl/hospital-api/internal/handler/appointment"
	"github.com/jwalitptl/hospital-api/internal/handler/health"
	labHandler "github.com/jwalitptl/hospital-api/internal/handler/lab"
	promHandler "github.com/jwalitptl/hospital-api/internal/handler/prometheus"
	staffHandler "github.com/jwalitptl/hospital-api/internal/handler/staff"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	"github.com/jwalitptl/hospital-api/internal/router"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/service/lab"
	"github.com/jwalitptl/hospital-api/internal/service/notification"
	"github.com/jwalitptl/hospital-api/internal/service/room"
	"github.com/jwalitptl/hospital-api/internal/service/shift"
	"github.com/jwalitptl/hospital-api/internal/worker"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	m := metrics.New("hospital", prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	var (
		repos  *repository.Repositories
		checks []health.Check
	)
	switch cfg.Database.Driver {
	case "memory":
		log.Warn(nil, "using in-memory store; data is lost on restart")
		repos = memory.NewStore().Repositories()
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			log.Fatal(err, "failed to connect to database")
		}
		defer db.Close()
		repos = postgres.NewRepositories(db)
		checks = append(checks, health.Check{Name: "database", Probe: db.PingContext})
	}

	// Initialize message broker
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		rb, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:      cfg.Redis.URL,
			PoolSize: cfg.Redis.PoolSize,
		}, log, m)
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		broker = rb
		if p, ok := rb.(interface{ Ping(context.Context) error }); ok {
			checks = append(checks, health.Check{Name: "redis", Probe: p.Ping})
		}
	} else {
		broker = messaging.NewMemoryBroker(0)
	}
	defer broker.Close()

	// Initialize services
	bus := event.NewBus(log, m)
	event.NewBrokerForwarder(broker, cfg.Notifications.EventsTopic).SubscribeAll(bus)

	notifier := notification.NewService(repos.Notifications, log, m)
	availability := shift.NewAvailability(repos.Schedules, log, shift.WithLocation(cfg.Location()))
	allocator := room.NewAllocator(repos, log, m,
		room.WithRoomType(model.RoomType(cfg.Rooms.ExaminationType)),
		room.WithClaimAttempts(cfg.Rooms.ClaimAttempts),
	)
	reserver := shift.NewReserver(repos, availability, log)
	lifecycle := appointment.NewService(repos, allocator, reserver, bus, notifier, log)
	labSvc := lab.NewService(repos, availability, bus, notifier, log)

	// The memory store lives in this process, so nothing else can deliver
	// its notifications.
	if cfg.Database.Driver == "memory" {
		dispatcher := worker.NewDispatcher(repos, broker, dispatcherConfig(cfg.Notifications), log, m)
		go dispatcher.Start(ctx)
	}

	// Setup router
	routerConfig := router.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = &middleware.RateLimiterConfig{
			RPS:   cfg.RateLimit.RequestsPerSecond,
			Burst: cfg.RateLimit.Burst,
		}
	}
	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret)),
		health.NewHandler(checks...),
		promHandler.New(prometheus.DefaultGatherer, m),
		routerConfig,
		appointmentHandler.NewHandler(lifecycle, allocator, reserver, availability, log),
		staffHandler.NewHandler(availability),
		labHandler.NewHandler(labSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
		return
	}

	log.Info("server exited properly")
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = logger.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:   level,
		Output:  os.Stdout,
		Console: cfg.Console,
	})
	// the gin middleware logs through the global zerolog logger
	zlog.Logger = log.Zerolog()
	return log
}

func dispatcherConfig(cfg config.NotificationsConfig) worker.DispatcherConfig {
	return worker.DispatcherConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		Channel:       cfg.Channel,
	}
}
