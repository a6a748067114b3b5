package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hms-backend/internal/config"
	"hms-backend/internal/models"
)

// Dialector picks the gorm driver for the configured engine.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		dsn := cfg.DSN()
		if !strings.Contains(dsn, "foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=foreign_keys(1)"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// GormConfig is shared by the server and the tests. TranslateError makes
// unique violations surface as gorm.ErrDuplicatedKey on every driver.
func GormConfig(ginMode string) *gorm.Config {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if ginMode == "release" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	return &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Connect opens the database and configures the connection pool
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Database)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, GormConfig(cfg.Server.GinMode))
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info("connected to database", zap.String("driver", cfg.Database.Driver))

	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	err := db.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.LoginAttempt{},
		&models.Patient{},
		&models.EmergencyContact{},
		&models.MRNSequence{},
		&models.Consultation{},
		&models.Diagnosis{},
		&models.LabOrder{},
		&models.Medication{},
		&models.Prescription{},
		&models.PrescriptionItem{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	log.Info("migrations complete", zap.Duration("duration", time.Since(start)))
	return nil
}
