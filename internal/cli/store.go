package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/me/tickos/internal/store"
	"github.com/me/tickos/pkg/model"
)

// dbPath resolves --db, creating ~/.tickos when the default is used.
func dbPath() (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".tickos")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "tickos.db"), nil
}

// openStore opens and migrates the trace database. The caller closes it.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	path, err := dbPath()
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}

// loadRun fetches a recorded run, turning a miss into an error.
func loadRun(ctx context.Context, st store.Store, id string) (*model.Run, error) {
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return nil, model.NewNotFoundError("run", id)
	}
	return run, nil
}
