// Package app wires configuration, storage, sinks and handlers into one
// graph shared by the worker and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alem-hub/alem-economy/config"
	"github.com/alem-hub/alem-economy/internal/application/command"
	"github.com/alem-hub/alem-economy/internal/application/query"
	"github.com/alem-hub/alem-economy/internal/application/saga"
	"github.com/alem-hub/alem-economy/internal/application/uow"
	"github.com/alem-hub/alem-economy/internal/domain/achievement"
	"github.com/alem-hub/alem-economy/internal/domain/curriculum"
	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
	"github.com/alem-hub/alem-economy/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-economy/internal/infrastructure/metrics"
	"github.com/alem-hub/alem-economy/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/alem-economy/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/alem-economy/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/alem-economy/internal/interface/http/handlers"
	"github.com/alem-hub/alem-economy/pkg/logger"
)

// App is the fully wired service.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Calc     *curriculum.Calculator
	Unit     uow.UnitOfWork
	Commands *command.Handlers

	Summary      *query.GetAccountSummaryHandler
	History      *query.GetHistoryHandler
	Achievements *query.ListAchievementsHandler

	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Health   *handlers.CompositeHealthChecker

	migrate func(ctx context.Context) (int, error)
	closers []func()
}

// New builds the application from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (a *App, err error) {
	a = &App{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
		Health:   handlers.NewCompositeHealthChecker(cfg.App.Version),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	schedule, err := config.LoadCurriculum(cfg.Economy.CurriculumFile)
	if err != nil {
		return nil, err
	}
	a.Calc = curriculum.NewCalculator(schedule)

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		applied, err := a.migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database schema is up to date", slog.Int("applied", applied))
	}

	locker, notifier, audit, err := a.openRedis(ctx)
	if err != nil {
		return nil, err
	}

	exec := command.NewExecutor(a.Unit, locker,
		command.WithNotificationSink(notifier),
		command.WithAuditSink(audit),
		command.WithMetrics(a.Metrics),
		command.WithLogger(log.With(logger.Component("executor"))),
	)
	flow := saga.NewAchievementFlow(achievement.NewEvaluator(a.Calc, log), log)
	a.Commands = command.NewHandlers(exec, a.Calc, flow, command.Settings{
		Conversion: ledger.ConversionRule{
			LegacyCost:      ledger.Amount(cfg.Economy.ConversionLegacyCost),
			LessonThreshold: cfg.Economy.ConversionLessonThreshold,
			PrimaryCredit:   ledger.Units(cfg.Economy.ConversionCredit),
		},
		QuizReward: ledger.Amount(cfg.Economy.QuizReward),
	})

	a.Summary = query.NewGetAccountSummaryHandler(a.Unit, a.Calc)
	a.History = query.NewGetHistoryHandler(a.Unit)
	a.Achievements = query.NewListAchievementsHandler(a.Unit)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case config.DriverPostgres:
		opts := postgres.DefaultPoolOptions()
		opts.MaxConns = int32(a.Config.Database.MaxConns)
		opts.MinConns = int32(a.Config.Database.MinConns)
		opts.MaxConnLifetime = a.Config.Database.ConnMaxLifetime
		opts.MaxConnIdleTime = a.Config.Database.ConnMaxIdleTime

		conn, err := postgres.Connect(ctx, a.Config.Database.URL, opts)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, conn.Close)
		a.Unit = postgres.NewUnitOfWork(conn)
		a.migrate = postgres.NewMigrator(conn).Migrate
		a.Health.AddCheck("database", handlers.NewPingCheck(conn))

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, a.Config.Database.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		store := sqlite.NewStore(db)
		a.Unit = store
		a.migrate = func(ctx context.Context) (int, error) { return sqlite.Migrate(ctx, db) }
		a.Health.AddCheck("database", handlers.NewPingCheck(store))

	default:
		return fmt.Errorf("unknown database driver %q", a.Config.Database.Driver)
	}
	a.Logger.Info("store opened", slog.String("driver", a.Config.Database.Driver))
	return nil
}

// openRedis returns the locker and sinks. Without Redis the process uses the
// in-process locker and log sinks, which is only safe for a single writer.
func (a *App) openRedis(ctx context.Context) (uow.Locker, shared.NotificationSink, shared.AuditSink, error) {
	logSink := messaging.NewLogSink(a.Logger)

	bus := messaging.NewEventBus(messaging.EventBusConfig{AsyncMode: true, Logger: a.Logger})
	a.closers = append(a.closers, func() { _ = bus.Close() })
	if err := bus.SubscribeAll("log", logSink.Handle); err != nil {
		return nil, nil, nil, err
	}

	rc := a.Config.Redis
	if rc.Disabled {
		a.Logger.Warn("redis disabled, using in-process account locks")
		return uow.NewKeyedMutex(), bus, logSink, nil
	}

	client, err := redis.Connect(ctx, rc.URL)
	if err != nil {
		if a.Config.IsProduction() {
			return nil, nil, nil, err
		}
		a.Logger.Warn("redis unavailable, using in-process account locks", logger.Err(err))
		return uow.NewKeyedMutex(), bus, logSink, nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.Health.AddOptionalCheck("redis", handlers.NewPingCheck(client))

	stream := messaging.NewStreamSink(
		redis.NewStreamPublisher(client.Raw(), rc.EventStream, rc.StreamMaxLen),
		redis.NewStreamPublisher(client.Raw(), rc.AuditStream, rc.StreamMaxLen),
	)
	if err := bus.SubscribeAll("stream", stream.Handle); err != nil {
		return nil, nil, nil, err
	}

	locker := redis.NewAccountLocker(client.Raw(),
		redis.WithLockTTL(rc.LockTTL),
		redis.WithLockerLogger(a.Logger),
	)
	return locker, bus, messaging.AuditFanout{logSink, stream}, nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) (int, error) {
	return a.migrate(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
