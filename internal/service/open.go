package service

import (
	"context"
	"fmt"

	"github.com/ajaxzhan/filekeeper/internal/config"
	"github.com/ajaxzhan/filekeeper/internal/fs"
	"github.com/ajaxzhan/filekeeper/internal/index"
	"github.com/ajaxzhan/filekeeper/internal/logging"
	"github.com/ajaxzhan/filekeeper/internal/objstore"
)

// Open builds a service from cfg on the host filesystem: it creates the
// root directory if needed, opens the snapshot backend and loads the index.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	store := objstore.NewOS()
	if err := store.EnsureRoot(cfg.Storage.Root); err != nil {
		return nil, err
	}

	snap, err := index.Open(cfg.Index.Backend, cfg.Index.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index backend: %w", err)
	}

	idx := index.New(snap, index.WithStrict(cfg.Index.Strict))
	if err := idx.Load(ctx); err != nil {
		snap.Close()
		return nil, err
	}

	logging.Info("Index loaded",
		logging.String("backend", cfg.Index.Backend),
		logging.String("snapshot", cfg.Index.SnapshotPath),
		logging.Int("entries", idx.Len()),
		logging.Bool("strict", cfg.Index.Strict),
	)

	return New(
		fs.NewResolver(cfg.Storage.Root),
		idx,
		store,
		fs.NewPermissionEvaluator(cfg.Users.Admin),
		opts...,
	), nil
}
