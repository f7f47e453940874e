// Command server runs the firefighter access lifecycle engine: the HTTP
// API, the activation/expiry scheduler, and the transition event
// publisher. Storage, Redis, and Kafka are all optional; without them
// the process runs self-contained on in-memory stores for development.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"firegate/internal/connector"
	"firegate/internal/domain"
	"firegate/internal/events"
	"firegate/internal/lifecycle"
	"firegate/internal/platform/config"
	"firegate/internal/platform/httpserver"
	"firegate/internal/platform/kafka"
	"firegate/internal/platform/logger"
	"firegate/internal/platform/metrics"
	"firegate/internal/platform/postgres"
	"firegate/internal/platform/redis"
	"firegate/internal/pool"
	poolhandler "firegate/internal/pool/handler"
	requesthandler "firegate/internal/request/handler"
	requeststore "firegate/internal/request/store"
	"firegate/internal/scheduler"
	"firegate/internal/sessionlog"
	"firegate/internal/targets"
	httptransport "firegate/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Postgres.URL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		return err
	}
	defer producer.Close()
	if producer != nil {
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Topic, 3); err != nil {
			return err
		}
	}

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		requests requeststore.Store
		poolSt   pool.Store
		sessions sessionlog.Store
		outbox   events.Outbox
	)
	if db != nil {
		reqStore := requeststore.NewPostgres(db)
		poolStore := pool.NewPostgres(db)
		sessStore := sessionlog.NewPostgres(db)
		eventBox := events.NewPostgresOutbox(db)
		for _, ensure := range []func(context.Context) error{
			reqStore.EnsureSchema, poolStore.EnsureSchema, sessStore.EnsureSchema, eventBox.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				return err
			}
		}
		requests, poolSt, sessions, outbox = reqStore, poolStore, sessStore, eventBox
	} else {
		log.Warn("no DATABASE_URL configured, running on in-memory stores")
		requests, poolSt, sessions, outbox = requeststore.NewMemory(), pool.NewMemory(), sessionlog.NewMemory(), events.NewMemoryOutbox()
	}

	// External collaborators. Real directory/connector integrations are
	// deployment-specific; the fakes keep development mode usable.
	directory := connector.NewStaticDirectory(demoUsers()...)
	target := connector.NewFakeTargetSystem()
	notifier := &connector.LogNotifier{Logger: log}
	registry := targets.NewRegistry(demoTargets())

	sharedMetrics := metrics.New()
	poolSvc := pool.NewService(poolSt, cfg.Scheduler.CoolDown, log, pool.NewMetrics())
	if db == nil {
		if err := poolSvc.Seed(ctx, demoPool()); err != nil {
			return err
		}
	}

	recorder := events.NewService(outbox, log)
	sessionSvc := sessionlog.NewService(sessions, target, sessionlog.HeuristicScorer{}, log)

	lifecycleSvc := lifecycle.NewService(lifecycle.Deps{
		Requests:  requests,
		Pool:      poolSvc,
		Sessions:  sessionSvc,
		Recorder:  recorder,
		Directory: directory,
		Target:    target,
		Notifier:  notifier,
		Registry:  registry,
		Connector: cfg.Connector,
		Logger:    log,
		Metrics:   lifecycle.NewMetrics(),
	})

	checkers := map[string]httptransport.HealthChecker{}
	if db != nil {
		checkers["postgres"] = func() error { return db.Ping() }
	}
	if redisClient != nil {
		checkers["redis"] = func() error { return redisClient.Health(context.Background()) }
	}

	router := httptransport.NewRouter(log, sharedMetrics, checkers,
		requesthandler.New(lifecycleSvc, log, sharedMetrics),
		poolhandler.New(poolSvc, log),
		registry,
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	sched := scheduler.New(lifecycleSvc, poolSvc, redisClient, cfg.Scheduler, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := sched.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if producer != nil {
		pub := events.NewPublisher(outbox, producer, cfg.Kafka.Topic, cfg.Scheduler.TickInterval, recorder.Wake(), log)
		g.Go(func() error {
			err := pub.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Development-mode fixtures, only used when no database is configured.

func demoUsers() []connector.User {
	return []connector.User{
		{ID: "jdoe", Name: "J. Doe", Email: "jdoe@example.com", ManagerID: "mgarcia"},
		{ID: "asmith", Name: "A. Smith", Email: "asmith@example.com", ManagerID: "mgarcia"},
		{ID: "mgarcia", Name: "M. Garcia", Email: "mgarcia@example.com"},
		{ID: "controller", Name: "Firefighter Controller", Email: "ffcontrol@example.com"},
		{ID: "secops", Name: "Security Operations", Email: "secops@example.com"},
	}
}

func demoTargets() []targets.System {
	return []targets.System{
		{ID: "PRD", Description: "production ERP", Tier: domain.TierHigh},
		{ID: "QAS", Description: "quality assurance", Tier: domain.TierMedium},
		{ID: "DEV", Description: "development sandbox", Tier: domain.TierLow},
	}
}

func demoPool() []*pool.Entry {
	return []*pool.Entry{
		{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierCritical},
		{FirefighterID: "FF_PRD_02", TargetSystem: "PRD", Tier: domain.TierHigh},
		{FirefighterID: "FF_QAS_01", TargetSystem: "QAS", Tier: domain.TierMedium},
		{FirefighterID: "FF_DEV_01", TargetSystem: "DEV", Tier: domain.TierLow},
	}
}
