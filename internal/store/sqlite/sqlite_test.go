package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/store"
	"github.com/dvloznov/spendbook/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "spendbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTemp(t)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, Migrate(s.db))
	v, dirty, err := Version(s.db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 1, v)
}

func TestHandleReconfigure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	h := store.NewHandle(Opener(filepath.Join(dir, "a.db")))
	require.NoError(t, h.Open(ctx))
	defer h.Close()

	require.NoError(t, h.Reconfigure(ctx, Opener(filepath.Join(dir, "b.db"))))
	list, err := h.ListEntities(ctx, store.EntityFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
