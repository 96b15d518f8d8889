package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
	"github.com/dvloznov/spendbook/internal/store/memory"
)

func TestHandleLifecycle(t *testing.T) {
	ctx := context.Background()
	opens := 0
	h := store.NewHandle(func(ctx context.Context) (store.Store, error) {
		opens++
		return memory.New(), nil
	})

	_, err := h.GetEntity(ctx, "x")
	assert.Error(t, err, "unopened handle must fail")

	require.NoError(t, h.Open(ctx))
	require.NoError(t, h.Open(ctx))
	assert.Equal(t, 1, opens)

	require.NoError(t, h.CreateEntity(ctx, &domain.Entity{ID: "x", Label: "X", Category: domain.CategoryBank}))

	require.NoError(t, h.Reconfigure(ctx, nil))
	assert.Equal(t, 2, opens)
	_, err = h.GetEntity(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound, "reconfigure reopens a fresh backend")

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}
