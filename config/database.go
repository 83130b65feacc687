package config

import (
	"fmt"
	"strings"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// ConnectDatabase opens the database named by cfg and installs the tracing plugin
func ConnectDatabase(cfg *Config) error {
	dialector, err := Dialector(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		GetLogger().WithError(err).Warn("database connected but otelgorm plugin could not be installed")
	}

	DB = db
	GetLogger().WithField("driver", dialector.Name()).Info("Database connection established successfully")
	return nil
}

// GormConfig returns the gorm options shared by the server and tests.
// Recipe and customer references are weak, so no FK constraints are created.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

// Dialector picks the gorm driver; an empty driver is derived from the URL
func Dialector(driver, url string) (gorm.Dialector, error) {
	if driver == "" {
		driver = detectDriver(url)
	}

	switch driver {
	case "postgres":
		return postgres.Open(url), nil
	case "mysql":
		return mysql.Open(strings.TrimPrefix(url, "mysql://")), nil
	case "sqlite":
		return sqlite.Open(url), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func detectDriver(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(url, "mysql://"):
		return "mysql"
	case url == ":memory:", strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"):
		return "sqlite"
	default:
		return "postgres"
	}
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
