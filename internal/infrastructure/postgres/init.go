package postgres

import (
	"log"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-smm-service/internal/config"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/migrate"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

// Config is shared by every dialect so duplicate keys surface as
// gorm.ErrDuplicatedKey.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

func MustInitDB(cfg *config.SMMConfig) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.SMMDB.Dsn), Config())
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v\n", err)
	}
	if cfg.SMMDB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.SMMDB.MaxOpenConns)
	}

	if cfg.SMMDB.MigrationsPath != "" {
		if err := migrate.RunMigrations(db, cfg.SMMDB.MigrationsPath); err != nil {
			log.Fatalf("failed to run migrations: %v\n", err)
		}
		return db
	}

	if err := AutoMigrate(db); err != nil {
		log.Fatalf("failed to automigrate: %v\n", err)
	}
	slog.Info("schema synced with gorm automigrate")
	return db
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}
