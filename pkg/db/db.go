package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/renewly/internal/config"
	"github.com/smallbiznis/renewly/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle `optional:"true"`
	Config     config.Config
	Log        *zap.Logger
	GormLogger logger.GormLoggerConfig `optional:"true"`
}

// New opens the configured database with zap query logging, tracing and pool stats.
func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	gormCfg := p.GormLogger
	if !gormCfg.Configured() {
		gormCfg = logger.DefaultGormLoggerConfig()
		if !p.Config.IsProduction() {
			gormCfg.IgnoreRecordNotFound = true
		}
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(gormCfg),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.Config.DBType, err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Config.DBName))); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.Config.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, fmt.Errorf("register metrics plugin: %w", err)
	}

	pool := PoolConfig(p.Config)
	if err := applyPool(conn, pool); err != nil {
		return nil, err
	}

	log := p.Log.Named("db")
	log.Info("database connected",
		zap.String("type", pool.Type),
		zap.Int("max_open_conn", pool.MaxOpenConn),
	)

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
	}
	return conn, nil
}

func applyPool(conn *gorm.DB, pool Config) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if pool.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConn)
	}
	if pool.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConn)
	}
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	return nil
}
