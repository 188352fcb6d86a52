package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-lgtv/internal/bridges/lgtv"
	"github.com/nerrad567/gray-logic-lgtv/internal/entry"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lgtv/internal/rs232"
	"github.com/nerrad567/gray-logic-lgtv/migrations"
)

// store is the migrated database and the entry repository on top of it.
type store struct {
	db      *database.DB
	entries *entry.SQLiteRepository
}

// openStore opens and migrates the entry database.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*store, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("database ready", "path", cfg.Database.Path, "migrations_applied", applied)

	return &store{db: db, entries: entry.NewSQLiteRepository(db.DB)}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

// runtimeDeps are the optional collaborators of a runtime.
type runtimeDeps struct {
	metrics *lgtv.Metrics
	history lgtv.History
}

// newRuntime builds a runtime that opens real serial ports.
func newRuntime(cfg *config.Config, entries lgtv.EntryLister, deps runtimeDeps, log *logging.Logger) (*lgtv.Runtime, error) {
	return lgtv.NewRuntime(lgtv.RuntimeOptions{
		Open: lgtv.SerialOpener(rs232.Options{
			BaudRate:    cfg.Serial.BaudRate,
			ReadTimeout: cfg.GetSerialReadTimeout(),
		}),
		Entries:    entries,
		Validation: lgtv.ValidationConfigFrom(cfg.Validation),
		Workers:    cfg.Bridge.SetupWorkers,
		Metrics:    deps.metrics,
		History:    deps.history,
		Logger:     log.Component("runtime"),
	})
}

// newProvisioner wires a provisioner over st and rt.
func newProvisioner(st *store, rt *lgtv.Runtime, log *logging.Logger) (*lgtv.Provisioner, error) {
	return lgtv.NewProvisioner(lgtv.ProvisionerOptions{
		Entries: st.entries,
		Runtime: rt,
		Logger:  log.Component("provision"),
	})
}
