package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/outletsync/internal/config"
	"github.com/JonMunkholm/outletsync/internal/core"
	"github.com/JonMunkholm/outletsync/internal/logging"
	"github.com/JonMunkholm/outletsync/internal/metrics"
	"github.com/JonMunkholm/outletsync/internal/store/memstore"
	"github.com/JonMunkholm/outletsync/internal/store/postgres"
	"github.com/JonMunkholm/outletsync/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_driver", cfg.Store.Driver,
		"import_strategy", cfg.Import.Strategy,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	settings, err := config.LoadSettings(cfg.Outlet)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, cfg, settings)
	if err != nil {
		return err
	}
	defer closeStores()

	// Stores listed in the settings file take precedence over the stores table.
	if len(settings.StoreInfos()) > 0 {
		stores.Sites = settings
	}

	var m *metrics.Metrics
	var observer core.Observer
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace, true)
		observer = m
	}

	strategy, err := core.ParseStrategy(cfg.Import.Strategy)
	if err != nil {
		return err
	}
	engine, err := core.New(stores, settings, core.Options{
		Strategy:  strategy,
		BatchSize: cfg.Import.BatchSize,
		Workers:   cfg.Import.Workers,
		Observer:  observer,
	})
	if err != nil {
		return err
	}

	server := web.NewServer(engine, cfg, m)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := server.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for batches to complete", "active", status.Active)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// openStores connects the configured storage driver and seeds its
// reference data from the settings file.
func openStores(ctx context.Context, cfg *config.Config, settings *config.OutletSettings) (core.Stores, func(), error) {
	file := settings.File()

	switch cfg.Store.Driver {
	case "memory":
		s := memstore.New()
		for _, v := range file.Vendors {
			s.AddVendor(vendor(v))
		}
		for _, r := range file.Regions {
			s.AddRegion(r.Code, r.Country, r.ID)
		}
		for _, st := range settings.StoreInfos() {
			s.AddSite(st)
		}
		slog.Warn("using in-memory store, data is lost on exit")
		return s.Stores(), func() {}, nil

	case "postgres":
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			return core.Stores{}, nil, err
		}
		s := postgres.New(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return core.Stores{}, nil, fmt.Errorf("migrate: %w", err)
		}

		vendors := make([]core.Vendor, 0, len(file.Vendors))
		for _, v := range file.Vendors {
			vendors = append(vendors, vendor(v))
		}
		regions := make([]postgres.Region, 0, len(file.Regions))
		for _, r := range file.Regions {
			regions = append(regions, postgres.Region{ID: r.ID, Code: r.Code, CountryID: r.Country})
		}
		if err := s.Seed(ctx, vendors, regions, settings.StoreInfos()); err != nil {
			pool.Close()
			return core.Stores{}, nil, fmt.Errorf("seed reference data: %w", err)
		}
		return s.Stores(), pool.Close, nil
	}
	return core.Stores{}, nil, errors.New("unknown store driver " + cfg.Store.Driver)
}

func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

func vendor(v config.VendorEntry) core.Vendor {
	return core.Vendor{
		SellerCode:    v.SellerCode,
		SellerID:      v.SellerID,
		SellerGroupID: v.SellerGroupID,
		ERPCode:       v.ERPCode,
	}
}
