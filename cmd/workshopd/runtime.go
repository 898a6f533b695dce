package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/example/workshop-scheduler/internal/application"
	"github.com/example/workshop-scheduler/internal/config"
	httptransport "github.com/example/workshop-scheduler/internal/http"
	"github.com/example/workshop-scheduler/internal/ledger"
	"github.com/example/workshop-scheduler/internal/meeting"
	"github.com/example/workshop-scheduler/internal/notify"
	"github.com/example/workshop-scheduler/internal/persistence"
	"github.com/example/workshop-scheduler/internal/persistence/memory"
	redisstore "github.com/example/workshop-scheduler/internal/persistence/redis"
	"github.com/example/workshop-scheduler/internal/persistence/sqlite"
	"github.com/example/workshop-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/workshop-scheduler/internal/recurrence"
)

// runtime owns the storage and ledger backends selected by configuration.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	storage persistence.Storage
	links   ledger.Store
	health  healthChecks
	closers []func() error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type healthChecks []httptransport.HealthChecker

func (h healthChecks) Ping(ctx context.Context) error {
	for _, check := range h {
		if err := check.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func openRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	if cfg.LedgerBackend == config.LedgerMemory {
		storage := memory.New()
		rt.storage = storage
		rt.links = storage
		rt.health = append(rt.health, storage)
		logger.WarnContext(ctx, "using in-memory storage; data is lost on exit")
		return rt, nil
	}

	storage, err := openSQLite(ctx, cfg.SQLiteDSN, logger)
	if err != nil {
		return nil, err
	}
	rt.storage = storage
	rt.links = storage
	rt.health = append(rt.health, storage)
	rt.closers = append(rt.closers, storage.Close)

	if cfg.LedgerBackend == config.LedgerRedis {
		opts := redisstore.DefaultConnectOptions(cfg.Redis.Addr)
		opts.Password = cfg.Redis.Password
		opts.DB = cfg.Redis.DB
		opts.ConnectTimeout = cfg.Redis.ConnectTimeout
		client, err := redisstore.Connect(ctx, opts, logger)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("connect ledger redis: %w", err)
		}
		rt.links = redisstore.NewLedgerStore(client)
		rt.health = append(rt.health, pingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }))
		rt.closers = append(rt.closers, client.Close)
	}

	return rt, nil
}

func openSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*sqlite.Storage, error) {
	storage, err := sqlite.OpenWithConfig(ctx, migration.DefaultSQLiteConfig(dsn), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return storage, nil
}

// Close releases backends in reverse order of opening.
func (rt *runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

type services struct {
	workshops *application.WorkshopService
	links     *application.SessionLinkService
}

func (rt *runtime) services(generator application.MeetingLinkGenerator, notifier application.LinkNotifier, now func() time.Time, idGenerator func() string) services {
	workshops := newWorkshopRepositoryAdapter(rt.storage)
	enrollments := newEnrollmentRepositoryAdapter(rt.storage)
	resolver := recurrence.NewResolver(rt.cfg.Timezone)

	return services{
		workshops: application.NewWorkshopServiceWithLogger(workshops, enrollments, rt.links, notifier, idGenerator, now, rt.logger),
		links:     application.NewSessionLinkServiceWithLogger(workshops, enrollments, rt.links, generator, notifier, resolver, now, rt.logger),
	}
}

func (rt *runtime) handler(svc services) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Workshops:    httptransport.NewWorkshopHandlerWithLogger(svc.workshops, rt.logger),
		Links:        httptransport.NewLinkHandlerWithLogger(svc.links, rt.logger),
		Health:       rt.health,
		AdminKeyHash: rt.cfg.AdminKeyHash,
		Logger:       rt.logger,
	})
}

func newGenerator(cfg config.MeetingConfig) (application.MeetingLinkGenerator, error) {
	if cfg.Provider == config.MeetingHTTP {
		return meeting.NewHTTPGenerator(meeting.HTTPConfig{
			Endpoint: cfg.Endpoint,
			APIToken: cfg.APIToken,
			Timeout:  cfg.Timeout,
		})
	}
	return meeting.StaticGenerator{BaseURL: cfg.BaseURL}, nil
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) (application.LinkNotifier, error) {
	if cfg.SendGridAPIKey == "" {
		return notify.LogNotifier{Logger: logger}, nil
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse WORKSHOP_NOTIFY_FROM: %w", err)
	}
	return notify.NewSendGridNotifier(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromName:  from.Name,
		FromEmail: from.Address,
	})
}
