package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/statements"
	"github.com/dvloznov/spendbook/internal/store/memory"
)

type fixture struct {
	store     *memory.Store
	svc       *Service
	lifecycle *statements.Service
	statement *domain.Statement
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	lifecycle := statements.NewService(s)

	bank := &domain.Entity{ID: "bank-1", Label: "Monzo", Category: domain.CategoryBank}
	require.NoError(t, s.CreateEntity(ctx, bank))
	st, err := lifecycle.Create(ctx, bank.ID, "jan.pdf")
	require.NoError(t, err)
	require.NoError(t, lifecycle.MarkProcessed(ctx, st.ID))

	return &fixture{store: s, svc: NewService(s, lifecycle), lifecycle: lifecycle, statement: st}
}

func (f *fixture) create(t *testing.T, amount int64, at time.Time) *domain.Transaction {
	t.Helper()
	tx, err := f.svc.Create(context.Background(), CreateInput{
		StatementID: f.statement.ID,
		CreatedAt:   at,
		Amount:      amount,
		Currency:    "gbp",
		Description: " Coffee ",
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) status(t *testing.T) domain.StatementStatus {
	t.Helper()
	st, err := f.lifecycle.Get(context.Background(), f.statement.ID)
	require.NoError(t, err)
	return st.Status
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tx := f.create(t, 350, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, "GBP", tx.Currency)
	assert.Equal(t, "Coffee", tx.Description)
	assert.False(t, tx.Reviewed())

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"negative amount", CreateInput{StatementID: f.statement.ID, Amount: -1}, domain.ErrValidation},
		{"shared exceeds amount", CreateInput{StatementID: f.statement.ID, Amount: 100, Shared: true, SharedAmount: domain.Ptr[int64](200)}, domain.ErrValidation},
		{"negative shared amount", CreateInput{StatementID: f.statement.ID, Amount: 100, SharedAmount: domain.Ptr[int64](-5)}, domain.ErrValidation},
		{"unknown statement", CreateInput{StatementID: "missing", Amount: 100}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_ZeroTimeMeansNow(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	tx := f.create(t, 100, time.Time{})
	assert.Equal(t, now, tx.CreatedAt)
}

func TestListByStatement_NewestFirst(t *testing.T) {
	f := newFixture(t)
	older := f.create(t, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := f.create(t, 200, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))

	txs, err := f.svc.ListByStatement(context.Background(), f.statement.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, newer.ID, txs[0].ID)
	assert.Equal(t, older.ID, txs[1].ID)
}

func TestUpdate_ReviewDrivesStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := f.create(t, 200, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	reviewedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Update(ctx, a.ID, domain.TransactionPatch{ReviewedAt: domain.Some(&reviewedAt)})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, f.status(t))

	_, err = f.svc.Update(ctx, b.ID, domain.TransactionPatch{ReviewedAt: domain.Some(&reviewedAt)})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReviewed, f.status(t))

	_, err = f.svc.Update(ctx, b.ID, domain.TransactionPatch{ReviewedAt: domain.Some[*time.Time](nil)})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, f.status(t))
}

func TestUpdate_SparsePatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tx := f.create(t, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	recipient := "food"

	got, err := f.svc.Update(ctx, tx.ID, domain.TransactionPatch{
		RecipientID:  domain.Some(&recipient),
		Shared:       domain.Some(true),
		SharedAmount: domain.Some(domain.Ptr[int64](400)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Coffee", got.Description)
	require.NotNil(t, got.RecipientID)
	assert.Equal(t, "food", *got.RecipientID)
	assert.True(t, got.Shared)
	assert.Equal(t, int64(400), *got.SharedAmount)

	_, err = f.svc.Update(ctx, tx.ID, domain.TransactionPatch{SharedAmount: domain.Some(domain.Ptr[int64](5000))})
	assert.ErrorIs(t, err, domain.ErrValidation)

	stored, err := f.svc.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), *stored.SharedAmount)

	_, err = f.svc.Update(ctx, "missing", domain.TransactionPatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReviewStatement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, 100, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f.create(t, 200, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	st, err := f.svc.ReviewStatement(ctx, f.statement.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReviewed, st.Status)
	assert.NotNil(t, st.ReviewedAt)

	txs, err := f.svc.ListByStatement(ctx, f.statement.ID)
	require.NoError(t, err)
	for _, tx := range txs {
		assert.True(t, tx.Reviewed())
	}

	st, err = f.svc.ReviewStatement(ctx, f.statement.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, st.Status)

	_, err = f.svc.ReviewStatement(ctx, "missing", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
