// Package app assembles the lookup stack from configuration. Both the server and the CLI use it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"postcode-api/internal/cache"
	"postcode-api/internal/config"
	"postcode-api/internal/ingest"
	"postcode-api/internal/localdb"
	"postcode-api/internal/localdb/chain"
	"postcode-api/internal/localdb/file"
	"postcode-api/internal/localdb/sqldb"
	"postcode-api/internal/lookup"
	"postcode-api/internal/metrics"
	"postcode-api/internal/migrate"
	"postcode-api/internal/utils"
)

const (
	dbMaxOpen = 20
	dbMaxIdle = 10
)

// App is a ready-to-use lookup stack.
type App struct {
	Engine    *lookup.Engine
	AreaTypes []string
	Positive  *cache.LRU[lookup.Key, string]
	Negative  *cache.Expiring[lookup.Key]
	DB        *sql.DB
}

type catalogSource interface {
	localdb.Source
	localdb.Catalog
}

// Build opens the configured data source, discovers the area types and builds the caches and the
// engine. A SQL-only store is seeded from DATA_DIR when its table is empty.
func Build(ctx context.Context, cfg *config.Config, l *slog.Logger) (*App, error) {
	a := &App{}
	src, err := a.openSource(ctx, cfg, l)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.AreaTypes, err = src.AreaTypes(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("discover area types: %w", err)
	}
	l.Info("area_types_discovered", "source", cfg.DataSource, "area_types", a.AreaTypes)

	if a.Positive, err = cache.NewLRU[lookup.Key, string](cfg.PositiveCacheSize); err != nil {
		a.Close()
		return nil, err
	}
	if a.Negative, err = cache.NewExpiring[lookup.Key](cfg.NegativeCacheSize, cfg.NegativeCacheTTL); err != nil {
		a.Close()
		return nil, err
	}
	a.Engine = lookup.New(metrics.InstrumentSource(src), a.Positive, a.Negative,
		lookup.WithCoalescing(cfg.CoalesceLookups),
		lookup.WithDrainErrorHandler(func(areaType, outcode string, err error) {
			metrics.DrainErrorsTotal.Inc()
			l.Warn("drain_error", "area_type", areaType, "outcode", outcode, "err", err)
		}),
	)
	return a, nil
}

func (a *App) openSource(ctx context.Context, cfg *config.Config, l *slog.Logger) (catalogSource, error) {
	var fileSrc *file.Source
	if cfg.DataSource != config.SourceSQL {
		fileSrc = file.NewSource(cfg.DataDir, l)
	}
	if !cfg.UsesSQL() {
		return fileSrc, nil
	}

	db, err := utils.OpenDB(cfg.DBDriver, cfg.DBDSN, dbMaxOpen, dbMaxIdle)
	if err != nil {
		return nil, err
	}
	a.DB = db
	l.Info("db_open_ok", "driver", cfg.DBDriver)
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	if cfg.DataSource == config.SourceSQL && isDir(cfg.DataDir) {
		if err := ingest.EnsureImported(ctx, db, cfg.DataDir); err != nil {
			return nil, fmt.Errorf("seed partitions from %s: %w", cfg.DataDir, err)
		}
	}
	sqlSrc := sqldb.NewSource(db)
	if fileSrc == nil {
		return sqlSrc, nil
	}
	return chain.NewSource(fileSrc, sqlSrc), nil
}

// RegisterMetrics exposes the cache sizes on reg.
func (a *App) RegisterMetrics(reg prometheus.Registerer) error {
	return metrics.RegisterCacheGauges(reg, a.Positive.Len, a.Negative.Len)
}

// Close waits for background drains and releases the database.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Wait()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func isDir(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
