package database

import (
	"context"
	"errors"
	"fmt"
	"real-estate-catalog/internal/config"
	"real-estate-catalog/internal/models"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup by key matches no row
var ErrNotFound = errors.New("record not found")

type GormDB struct {
	db *gorm.DB
}

// Open connects to the configured driver and verifies the connection
func Open(cfg config.DatabaseConfig, log *logrus.Logger) (*GormDB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	log.WithField("driver", cfg.Driver).Info("Connected to database")
	return &GormDB{db: db}, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			m := cfg.MySQL
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				m.User, m.Password, m.Host, m.Port, m.Database)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			p := cfg.Postgres
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
				p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
		}
		return postgres.Open(dsn), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("file:%s?_foreign_keys=on", cfg.SQLitePath)
		}
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection for health checks
func (gdb *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// InitSchema creates tables using GORM AutoMigrate.
// All models go in one call so foreign keys declared on either side of a
// relation are created.
func (gdb *GormDB) InitSchema() error {
	return gdb.db.AutoMigrate(
		&models.Neighborhood{},
		&models.Tag{},
		&models.Amenity{},
		&models.Property{},
		&models.PropertyImage{},
		&models.PropertyTag{},
		&models.PropertyAmenity{},
		&models.PropertyView{},
		&models.Lead{},
		&models.PropertySnapshot{},
		&models.PropertyChange{},
		&models.DeleteLog{},
		&models.SearchSyncJob{},
	)
}

// Transaction runs fn against a GormDB bound to one database transaction
func (gdb *GormDB) Transaction(ctx context.Context, fn func(tx *GormDB) error) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormDB{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
