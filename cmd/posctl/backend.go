package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/iliyamo/studio-pos/internal/app"
	"github.com/iliyamo/studio-pos/internal/config"
	"github.com/iliyamo/studio-pos/internal/database"
	"github.com/iliyamo/studio-pos/internal/service"
)

// backend is what the commands act on.
type backend interface {
	Finalize(ctx context.Context, transactionID, organizationID string) (service.FinalizeResult, error)
	Resign(ctx context.Context, transactionID, organizationID string) (service.FinalizeResult, error)
	ResignAll(ctx context.Context, organizationID string, limit int) (int, error)
	Migrate(ctx context.Context) error
}

// opener connects a backend.  The returned close function must be called.
type opener func() (backend, func(), error)

type liveBackend struct {
	*service.Finalizer
	db     *sql.DB
	logger *log.Logger
}

func (b *liveBackend) Migrate(ctx context.Context) error {
	return database.RunMigrations(ctx, b.db, b.logger)
}

// openBackend wires the same services the server uses.  Redis is used for
// the finalization lock when reachable, so posctl and the server never
// sign the same sale concurrently.
func openBackend() (backend, func(), error) {
	logger := log.New(os.Stderr, "", log.Ldate|log.Ltime)
	cfg, err := config.Parse()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	rdb := config.NewRedisClient()
	closeAll := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = db.Close()
	}
	svc, err := app.Build(cfg, db, rdb, logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return &liveBackend{Finalizer: svc.Finalizer, db: db, logger: logger}, closeAll, nil
}
