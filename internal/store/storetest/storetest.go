// Package storetest holds behavior checks shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
)

// Run exercises s. newStore must return an empty store for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("entity crud", func(t *testing.T) { testEntities(t, newStore(t)) })
	t.Run("statement crud", func(t *testing.T) { testStatements(t, newStore(t)) })
	t.Run("transaction filters", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("atomic rollback", func(t *testing.T) { testAtomic(t, newStore(t)) })
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testEntities(t *testing.T, s store.Store) {
	ctx := context.Background()
	food := &domain.Entity{ID: "food", Label: "Food", Category: domain.CategoryExpense, CreatedAt: base, UpdatedAt: base}
	groc := &domain.Entity{ID: "groc", Label: "Groceries", Category: domain.CategoryExpense, ParentID: domain.Ptr("food"), CreatedAt: base, UpdatedAt: base}
	bank := &domain.Entity{ID: "bank", Label: "Monzo", Category: domain.CategoryBank, Currency: "GBP", CreatedAt: base, UpdatedAt: base}
	for _, e := range []*domain.Entity{food, groc, bank} {
		require.NoError(t, s.CreateEntity(ctx, e))
	}

	got, err := s.GetEntity(ctx, "groc")
	require.NoError(t, err)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, "food", *got.ParentID)

	expenses, err := s.ListEntities(ctx, store.EntityFilter{Category: domain.CategoryExpense})
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, "Food", expenses[0].Label)

	children, err := s.ListEntities(ctx, store.EntityFilter{ParentID: "food"})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "groc", children[0].ID)

	bank.Label = "Monzo Joint"
	require.NoError(t, s.UpdateEntity(ctx, bank))
	got, err = s.GetEntity(ctx, "bank")
	require.NoError(t, err)
	assert.Equal(t, "Monzo Joint", got.Label)

	require.NoError(t, s.DeleteEntity(ctx, "food"))
	_, err = s.GetEntity(ctx, "food")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteEntity(ctx, "food"), domain.ErrNotFound))
}

func testStatements(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := &domain.Statement{ID: "s1", BankID: "bank", UploadedAt: base, Status: domain.StatusNew}
	require.NoError(t, s.CreateStatement(ctx, st))
	require.NoError(t, s.CreateTransaction(ctx, &domain.Transaction{ID: "t1", StatementID: "s1", CreatedAt: base, Amount: 5}))

	processed := base.Add(time.Hour)
	st.Status = domain.StatusProcessed
	st.ProcessedAt = &processed
	st.ExternalFileID = "file-1"
	require.NoError(t, s.UpdateStatement(ctx, st))

	got, err := s.GetStatement(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, got.Status)
	assert.Equal(t, "file-1", got.ExternalFileID)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, processed.Equal(*got.ProcessedAt))
	assert.Nil(t, got.ReviewedAt)

	archived := true
	list, err := s.ListStatements(ctx, store.StatementFilter{Archived: &archived})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.DeleteStatement(ctx, "s1"))
	n, err := s.CountTransactions(ctx, store.TransactionFilter{StatementID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, errors.Is(s.UpdateStatement(ctx, st), domain.ErrNotFound))
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateStatement(ctx, &domain.Statement{ID: "s1", BankID: "bank", UploadedAt: base, Status: domain.StatusNew}))

	reviewed := base
	for i, amt := range []int64{10, 30, 20} {
		tx := &domain.Transaction{
			ID:          string(rune('a' + i)),
			StatementID: "s1",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			Amount:      amt,
			SenderID:    domain.Ptr("bank"),
		}
		if i != 1 {
			tx.ReviewedAt = &reviewed
		}
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	newest, err := s.ListTransactions(ctx, store.TransactionFilter{StatementID: "s1", OrderBy: store.OrderByCreatedAt, Desc: true})
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, []string{"c", "b", "a"}, ids(newest))

	yes := true
	only, err := s.ListTransactions(ctx, store.TransactionFilter{Reviewed: &yes})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(only))

	from, to := base.Add(time.Minute), base.Add(2*time.Minute)
	window, err := s.ListTransactions(ctx, store.TransactionFilter{CreatedFrom: &from, CreatedTo: &to})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(window), "window bounds are inclusive")

	byAmount, err := s.ListTransactions(ctx, store.TransactionFilter{OrderBy: store.OrderByAmount, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(byAmount))

	no := false
	n, err := s.CountTransactions(ctx, store.TransactionFilter{StatementID: "s1", Reviewed: &no})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tx, err := s.GetTransaction(ctx, "b")
	require.NoError(t, err)
	tx.RecipientID = domain.Ptr("groc")
	tx.Shared = true
	tx.SharedAmount = domain.Ptr(int64(10))
	require.NoError(t, s.UpdateTransaction(ctx, tx))
	tx, err = s.GetTransaction(ctx, "b")
	require.NoError(t, err)
	assert.True(t, tx.Shared)
	require.NotNil(t, tx.SharedAmount)
	assert.EqualValues(t, 10, *tx.SharedAmount)
	require.NotNil(t, tx.RecipientID)
	assert.Equal(t, "groc", *tx.RecipientID)

	deleted, err := s.DeleteTransactions(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

func testAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateStatement(ctx, &domain.Statement{ID: "s1", BankID: "bank", UploadedAt: base, Status: domain.StatusProcessed}))
	require.NoError(t, s.CreateTransaction(ctx, &domain.Transaction{ID: "t1", StatementID: "s1", CreatedAt: base, Amount: 1}))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx store.Store) error {
		if _, err := tx.DeleteTransactions(ctx, "s1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.CountTransactions(ctx, store.TransactionFilter{StatementID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "rolled back delete must not be visible")

	err = s.Atomic(ctx, func(tx store.Store) error {
		if _, err := tx.DeleteTransactions(ctx, "s1"); err != nil {
			return err
		}
		st, err := tx.GetStatement(ctx, "s1")
		if err != nil {
			return err
		}
		st.Status = domain.StatusNew
		return tx.UpdateStatement(ctx, st)
	})
	require.NoError(t, err)

	st, err := s.GetStatement(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, st.Status)
	n, err = s.CountTransactions(ctx, store.TransactionFilter{StatementID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func ids(txs []*domain.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
