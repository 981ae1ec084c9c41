// Package app wires configuration into the stores, caches and services shared
// by the server and the billing CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"restobill/internal/archive"
	"restobill/internal/billing"
	"restobill/internal/cache"
	"restobill/internal/clock"
	"restobill/internal/config"
	"restobill/internal/domain"
	"restobill/internal/menu"
	"restobill/internal/report"
	"restobill/internal/store"
	"restobill/internal/store/memory"
	pgstore "restobill/internal/store/postgres"
	sqlitestore "restobill/internal/store/sqlite"
)

type App struct {
	Config   config.Config
	Location *time.Location
	Repo     store.Repository
	Catalog  *menu.Catalog
	Billing  *billing.Service
	Reports  *report.Service

	closers []func() error
	log     *zap.Logger
}

// New opens every dependency named by cfg. Redis is optional: when it is not
// configured or does not answer, reports are computed without a cache.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	catalog, err := menu.LoadFile(cfg.MenuPath)
	if err != nil {
		return nil, err
	}
	log.Info("menu loaded", zap.String("path", cfg.MenuPath), zap.Int("items", catalog.Len()))

	a := &App{Config: cfg, Location: loc, Catalog: catalog, log: log}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.openStore(openCtx); err != nil {
		return nil, err
	}

	reportCache := a.openReportCache(openCtx)
	clk := clock.System{Location: loc}

	a.Billing = billing.New(a.Repo, catalog, archive.NewWriter(cfg.ArchiveDir), clk, log.Named("billing"))
	a.Reports = report.NewService(catalog, report.Options{
		ArchiveDir: cfg.ArchiveDir,
		ReportDir:  cfg.ReportDir,
		Location:   loc,
		Cache:      reportCache,
		CacheTTL:   time.Duration(cfg.ReportCacheTTLSeconds) * time.Second,
		Clock:      clk,
		Logger:     log.Named("report"),
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.StoreDriver {
	case config.StorePostgres:
		pg, err := pgstore.New(ctx, a.Config.DatabaseURL, a.Location)
		if err != nil {
			return fmt.Errorf("postgres unavailable: %w", err)
		}
		a.Repo = pg
		a.closers = append(a.closers, pg.Close)
	case config.StoreMemory:
		mem, err := memory.NewSeeded()
		if err != nil {
			return err
		}
		a.Repo = mem
	default:
		lite, err := sqlitestore.New(ctx, a.Config.SQLitePath, a.Location)
		if err != nil {
			return fmt.Errorf("sqlite unavailable: %w", err)
		}
		a.Repo = lite
		a.closers = append(a.closers, lite.Close)
	}
	a.log.Info("repository opened", zap.String("driver", a.Config.StoreDriver))

	if a.Config.StoreDriver != config.StoreMemory {
		if err := seedUsers(ctx, a.Repo, a.Config, a.log); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) openReportCache(ctx context.Context) cache.ReportCache {
	if a.Config.RedisAddr == "" {
		a.log.Info("report cache: noop")
		return cache.NoopReportCache{}
	}
	redisCache := cache.NewRedisReportCache(a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		a.log.Warn("redis unavailable, using noop report cache", zap.Error(err))
		_ = redisCache.Close()
		return cache.NoopReportCache{}
	}
	a.closers = append(a.closers, redisCache.Close)
	a.log.Info("report cache: redis", zap.String("addr", a.Config.RedisAddr))
	return redisCache
}

// Close releases resources in reverse opening order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close error", zap.Error(err))
		}
	}
	a.closers = nil
}

// seedUsers creates the admin and cashier accounts in an empty user table.
// A role whose seed password is unset is skipped.
func seedUsers(ctx context.Context, repo store.Repository, cfg config.Config, log *zap.Logger) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	for _, seed := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", cfg.SeedAdminPassword, domain.RoleAdmin},
		{"cashier", cfg.SeedCashierPassword, domain.RoleCashier},
	} {
		if seed.password == "" {
			log.Warn("no seed password set, account not created", zap.String("username", seed.username))
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash seed password for %s: %w", seed.username, err)
		}
		err = repo.CreateUser(ctx, domain.UserAccount{
			Username:  seed.username,
			Password:  string(hash),
			Role:      seed.role,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("seed user %s: %w", seed.username, err)
		}
		log.Info("seeded user", zap.String("username", seed.username), zap.String("role", seed.role))
	}
	return nil
}
