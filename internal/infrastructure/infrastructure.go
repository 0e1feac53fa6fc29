// Package infrastructure assembles the systems every module depends on:
// logging, folder roots, the metadata sidecar, and the optional archive
// and history database.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JaimeStill/metainfo/internal/config"
	"github.com/JaimeStill/metainfo/pkg/database"
	"github.com/JaimeStill/metainfo/pkg/folders"
	"github.com/JaimeStill/metainfo/pkg/lifecycle"
	"github.com/JaimeStill/metainfo/pkg/sidecar"
	"github.com/JaimeStill/metainfo/pkg/storage"
)

// Infrastructure holds the shared systems. Database and Storage are nil
// when their configuration section is left empty.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Folders   *folders.Resolver
	Sidecar   *sidecar.Store
	Database  database.System
	Storage   storage.System
}

// New creates an Infrastructure that logs to stderr. Systems are
// initialized but not started.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput creates an Infrastructure whose logger writes to w.
func NewWithOutput(cfg *config.Config, w io.Writer) (*Infrastructure, error) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level()}))

	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Folders:   cfg.Paths.Resolver(),
		Sidecar:   sidecar.New(logger),
	}

	if cfg.Database.Enabled() {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	if cfg.Storage.Enabled() {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	return infra, nil
}

// Start creates the folder roots and registers the database and archive
// with the lifecycle coordinator, both as startup hooks and as readiness
// checks.
func (i *Infrastructure) Start() error {
	if err := i.Folders.Ensure(); err != nil {
		return fmt.Errorf("folders start failed: %w", err)
	}

	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
		i.Lifecycle.Check("database", i.Database)
	}

	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
		i.Lifecycle.Check("archive", i.Storage)
	}

	return nil
}
