// Package db opens the datastore and prepares its schema.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/docbatch/internal/config"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSQLitePath = "docbatch.db"

// Open connects to the configured driver. PostgreSQL connections are
// retried to give a starting container time to accept connections. SQLite
// is limited to one open connection so writes are serialised.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		log.Info("opening sqlite datastore", zap.String("dsn", dsn))
		conn, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return conn, nil

	case "postgres", "postgresql":
		dsn := NormalizeDSN(cfg.DSN)
		if dsn == "" {
			dsn = cfg.PostgresDSN()
		}
		log.Info("connecting to postgres",
			zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("dbname", cfg.DBName))
		var (
			conn *gorm.DB
			err  error
		)
		for i := 0; i < 5; i++ {
			conn, err = gorm.Open(postgres.Open(dsn), gcfg)
			if err == nil {
				return conn, nil
			}
			log.Warn("postgres connection failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(2 * time.Second)
		}
		return nil, fmt.Errorf("connect postgres: %w", err)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies the schema for every model.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Seed creates the operator account as an elevated user. Running it twice
// leaves a single row.
func Seed(conn *gorm.DB, operatorID, operatorName string) error {
	if operatorID == "" {
		return nil
	}
	u := models.User{Base: models.Base{ID: operatorID}}
	if err := conn.Where("id = ?", operatorID).
		Attrs(models.User{Name: operatorName, Role: gate.RoleElevated}).
		FirstOrCreate(&u).Error; err != nil {
		return fmt.Errorf("seed operator: %w", err)
	}
	return nil
}
