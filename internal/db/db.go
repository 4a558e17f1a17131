package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/config"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
)

// Connect opens the postgres database behind dsn.
func Connect(dsn string, pool config.PoolConfig) (*gorm.DB, error) {
	gdb, err := Open(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	return gdb, nil
}

// Open wraps any gorm dialector with the settings the store relies on.
// TranslateError maps driver duplicate-key errors to gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gdb, nil
}

type foreignKey struct {
	model    any
	name     string
	column   string
	refTable string
	onDelete string
}

// Bids and reviews go with their project; users are never removed from
// under history.
var foreignKeys = []foreignKey{
	{&models.Project{}, "fk_project_client", "client_id", `"user"`, "RESTRICT"},
	{&models.Project{}, "fk_project_freelancer", "freelancer_id", `"user"`, "RESTRICT"},
	{&models.Project{}, "fk_project_accepted_bid", "accepted_bid_id", "bid", "RESTRICT"},
	{&models.Bid{}, "fk_bid_project", "project_id", "project", "CASCADE"},
	{&models.Bid{}, "fk_bid_freelancer", "freelancer_id", `"user"`, "RESTRICT"},
	{&models.Review{}, "fk_review_project", "project_id", "project", "CASCADE"},
	{&models.Review{}, "fk_review_reviewer", "reviewer_id", `"user"`, "RESTRICT"},
	{&models.Review{}, "fk_review_reviewee", "reviewee_id", `"user"`, "RESTRICT"},
}

// Migrate creates or updates the user, project, bid, review and metrics_run
// tables. Foreign keys are added on postgres only.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Bid{},
		&models.Review{},
		&models.MetricsRun{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if gdb.Dialector.Name() != "postgres" {
		return nil
	}

	m := gdb.Migrator()
	for _, fk := range foreignKeys {
		if m.HasConstraint(fk.model, fk.name) {
			continue
		}
		stmt := &gorm.Statement{DB: gdb}
		if err := stmt.Parse(fk.model); err != nil {
			return fmt.Errorf("parse %s: %w", fk.name, err)
		}
		sql := fmt.Sprintf(`ALTER TABLE %q ADD CONSTRAINT %q FOREIGN KEY (%q) REFERENCES %s (id) ON DELETE %s`,
			stmt.Schema.Table, fk.name, fk.column, fk.refTable, fk.onDelete)
		if err := gdb.Exec(sql).Error; err != nil {
			return fmt.Errorf("add %s: %w", fk.name, err)
		}
	}
	return nil
}
