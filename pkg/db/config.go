package db

import (
	"time"

	"github.com/smallbiznis/renewly/internal/config"
)

// Config holds connection pool settings applied after the dialector opens.
type Config struct {
	Type            string
	Name            string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// PoolConfig derives pool settings from the application config.
func PoolConfig(cfg config.Config) Config {
	pool := Config{
		Type:            cfg.DBType,
		Name:            cfg.DBName,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY on concurrent batches.
	if cfg.DBType == "sqlite" {
		pool.MaxIdleConn = 1
		pool.MaxOpenConn = 1
	}
	return pool
}
