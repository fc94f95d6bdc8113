// Package app wires the stores, the broadcast channel and the services of one
// origin so the API server and the CLI start the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farmrent/internal/agreement"
	"farmrent/internal/config"
	"farmrent/internal/database"
	"farmrent/internal/domain"
	"farmrent/internal/events"
	"farmrent/internal/logging"
	"farmrent/internal/models"
	"farmrent/internal/pricing"
	"farmrent/internal/repository"
	"farmrent/internal/service"
	"farmrent/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisPingTimeout = 3 * time.Second

type App struct {
	Config  *config.Config
	Logger  *zerolog.Logger
	Store   domain.EntityStore
	DB      *database.DB // nil with the memory driver
	Redis   *redis.Client
	Channel events.Channel
	Issuer  *agreement.Issuer
	Users   *service.UserService
	Catalog *service.CatalogService

	closers []func() error
}

// New opens the store and the channel. With Redis disabled or unreachable the
// channel is process-local, so only windows of this process see each other.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Issuer: agreement.NewIssuer(cfg.Agreement.Prefix, cfg.Agreement.VerifyBaseURL),
	}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		a.Store = repository.NewMemoryStore()
	default:
		db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, err
		}
		a.DB = db
		a.Store = db
		a.closers = append(a.closers, db.Close)
	}

	a.Users = service.NewUserService(a.Store, logging.Component(logger, "users"))
	a.Catalog = service.NewCatalogService(a.Store, logging.Component(logger, "catalog"))
	a.Channel = a.initChannel(ctx)
	return a, nil
}

func (a *App) initChannel(ctx context.Context) events.Channel {
	bus := events.NewEventBus()
	if !a.Config.Redis.Enabled {
		return bus
	}

	logger := logging.Component(a.Logger, "sync")
	client := repository.NewRedisClient(a.Config.Redis)
	if err := repository.Ping(ctx, client, redisPingTimeout); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with local channel")
		_ = client.Close()
		return bus
	}

	rc, err := events.NewRedisChannel(ctx, client, a.Config.ChannelName(), logger)
	if err != nil {
		logger.Warn().Err(err).Msg("redis subscribe failed, continuing with local channel")
		_ = client.Close()
		return bus
	}
	a.Redis = client
	a.closers = append(a.closers, client.Close, rc.Close)
	logger.Info().Str("addr", a.Config.Redis.Address).Str("channel", a.Config.ChannelName()).Msg("redis connected")
	return events.NewFailoverChannel(rc, bus, logger)
}

// OpenWindow opens a window on the shared store and channel.
func (a *App) OpenWindow(id string) *session.Window {
	return session.Open(session.Deps{
		Store:   a.Store,
		Catalog: a.Catalog,
		Channel: a.Channel,
		Issuer:  a.Issuer,
		Pricing: pricing.Params{
			UnitFuelPrice:          a.Config.Pricing.UnitFuelPrice,
			FallbackFuelCostPerDay: a.Config.Pricing.FallbackFuelCostPerDay,
		},
		Origin: a.Config.Sync.Origin,
		Logger: logging.Component(a.Logger, "window"),
	}, id)
}

// SeedFromFile loads a catalog file and upserts its users and machinery.
func (a *App) SeedFromFile(ctx context.Context, path string) (users, machinery int, err error) {
	c, err := service.LoadCatalog(path)
	if err != nil {
		return 0, 0, err
	}
	users, machinery, err = service.Seed(ctx, c, a.Users, a.Catalog)
	if err != nil {
		return users, machinery, fmt.Errorf("seed %s: %w", path, err)
	}
	a.Logger.Info().Str("path", path).Int("users", users).Int("machinery", machinery).Msg("catalog seeded")
	return users, machinery, nil
}

// Identity resolves a stored profile into the caller identity.
func (a *App) Identity(ctx context.Context, email string) (models.Identity, error) {
	return a.Users.Identity(ctx, email)
}

// ErrNoBackup is returned by Backup when the store is not a file.
var ErrNoBackup = errors.New("backups need the sqlite driver")

func (a *App) Backup() (*database.BackupService, error) {
	if a.DB == nil {
		return nil, ErrNoBackup
	}
	return database.NewBackupService(a.Config.Database.Path, a.Config.Backup, logging.Component(a.Logger, "backup")), nil
}

// Ready reports whether the store answers.
func (a *App) Ready(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
