package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rushroster/rushroster-cloud/internal/config"
	"github.com/rushroster/rushroster-cloud/internal/db"
	"github.com/rushroster/rushroster-cloud/internal/logger"
)

// open loads configuration and connects to the configured database
// without running migrations.
func open() (*config.Config, *sqlx.DB, error) {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN, "rushctl")

	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, database, nil
}

// openMigrated is open plus pending migrations.
func openMigrated() (*config.Config, *sqlx.DB, error) {
	cfg, database, err := open()
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(database.DB, cfg.DBDriver); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return cfg, database, nil
}
