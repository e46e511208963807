package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/config"
	"github.com/sells-group/gap-analysis/internal/store"
)

// useSQLite points the package config at a fresh SQLite file and returns a
// migrated store on it.
func useSQLite(t *testing.T) store.Store {
	t.Helper()
	prev := cfg
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
	}}
	t.Cleanup(func() { cfg = prev })

	st, err := initStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}
