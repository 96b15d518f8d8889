package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.New())
}

func mustCreate(t *testing.T, svc *Service, in EntityInput) *domain.Entity {
	t.Helper()
	e, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	return e
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	food := mustCreate(t, svc, EntityInput{Label: "Food", Category: domain.CategoryExpense})
	groceries := mustCreate(t, svc, EntityInput{Label: "Groceries", Category: domain.CategoryExpense, ParentID: &food.ID})
	salary := mustCreate(t, svc, EntityInput{Label: "Salary", Category: domain.CategoryIncome})
	missing := "does-not-exist"

	tests := []struct {
		name string
		in   EntityInput
	}{
		{"blank label", EntityInput{Label: "  ", Category: domain.CategoryExpense}},
		{"unknown category", EntityInput{Label: "X", Category: "loans"}},
		{"non-expense with parent", EntityInput{Label: "Bonus", Category: domain.CategoryIncome, ParentID: &salary.ID}},
		{"parent of another category", EntityInput{Label: "Snacks", Category: domain.CategoryExpense, ParentID: &salary.ID}},
		{"nested parent", EntityInput{Label: "Fruit", Category: domain.CategoryExpense, ParentID: &groceries.ID}},
		{"missing parent", EntityInput{Label: "Fruit", Category: domain.CategoryExpense, ParentID: &missing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreate_Normalizes(t *testing.T) {
	svc := newTestService(t)
	blank := " "

	e := mustCreate(t, svc, EntityInput{
		Label:    "  Monzo ",
		Category: domain.CategoryBank,
		Currency: " gbp",
		ParentID: &blank,
	})

	assert.Equal(t, "Monzo", e.Label)
	assert.Equal(t, "GBP", e.Currency)
	assert.Nil(t, e.ParentID)
	assert.NotEmpty(t, e.ID)
}

func TestUpdate_ParentWithChildrenStaysRoot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	food := mustCreate(t, svc, EntityInput{Label: "Food", Category: domain.CategoryExpense})
	mustCreate(t, svc, EntityInput{Label: "Groceries", Category: domain.CategoryExpense, ParentID: &food.ID})
	transport := mustCreate(t, svc, EntityInput{Label: "Transport", Category: domain.CategoryExpense})

	_, err := svc.Update(ctx, food.ID, EntityInput{Label: "Food", Category: domain.CategoryIncome})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Update(ctx, food.ID, EntityInput{Label: "Food", Category: domain.CategoryExpense, ParentID: &transport.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)

	renamed, err := svc.Update(ctx, food.ID, EntityInput{Label: "Eating", Category: domain.CategoryExpense})
	require.NoError(t, err)
	assert.Equal(t, "Eating", renamed.Label)

	_, err = svc.Update(ctx, food.ID, EntityInput{Label: "Food", Category: domain.CategoryExpense, ParentID: &food.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Update(ctx, "nope", EntityInput{Label: "X", Category: domain.CategoryBank})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_LeavesDanglingChildren(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	food := mustCreate(t, svc, EntityInput{Label: "Food", Category: domain.CategoryExpense})
	groceries := mustCreate(t, svc, EntityInput{Label: "Groceries", Category: domain.CategoryExpense, ParentID: &food.ID})

	require.NoError(t, svc.Delete(ctx, food.ID))

	child, err := svc.Get(ctx, groceries.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, food.ID, *child.ParentID)

	root, err := svc.TopParent(ctx, groceries.ID)
	require.NoError(t, err)
	assert.Equal(t, groceries.ID, root.ID)

	assert.ErrorIs(t, svc.Delete(ctx, food.ID), domain.ErrNotFound)
}

func TestTopParent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	food := mustCreate(t, svc, EntityInput{Label: "Food", Category: domain.CategoryExpense})
	groceries := mustCreate(t, svc, EntityInput{Label: "Groceries", Category: domain.CategoryExpense, ParentID: &food.ID})

	root, err := svc.TopParent(ctx, groceries.ID)
	require.NoError(t, err)
	assert.Equal(t, food.ID, root.ID)

	root, err = svc.TopParent(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, food.ID, root.ID)

	_, err = svc.TopParent(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_ByCategory(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustCreate(t, svc, EntityInput{Label: "Monzo", Category: domain.CategoryBank})
	mustCreate(t, svc, EntityInput{Label: "Food", Category: domain.CategoryExpense})
	mustCreate(t, svc, EntityInput{Label: "Rent", Category: domain.CategoryExpense})

	expenses, err := svc.List(ctx, domain.CategoryExpense)
	require.NoError(t, err)
	assert.Len(t, expenses, 2)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIndex_KeyAndResolve(t *testing.T) {
	food := &domain.Entity{ID: "food", Label: "Food & Drink", Category: domain.CategoryExpense}
	groceries := &domain.Entity{ID: "groc", Label: "groceries", Category: domain.CategoryExpense, ParentID: domain.Ptr("food")}
	orphan := &domain.Entity{ID: "orphan", Label: "Taxi", Category: domain.CategoryExpense, ParentID: domain.Ptr("gone")}
	bank := &domain.Entity{ID: "bank", Label: "Monzo", Category: domain.CategoryBank}
	ix := NewIndex([]*domain.Entity{food, groceries, orphan, bank})

	keys := []struct {
		id   *string
		want string
	}{
		{nil, ""},
		{domain.Ptr("food"), "expenseFoodDrink"},
		{domain.Ptr("groc"), "expenseFoodDrinkGroceries"},
		{domain.Ptr("orphan"), "expenseTaxi"},
		{domain.Ptr("bank"), "bankMonzo"},
		{domain.Ptr("deleted"), UnknownKey},
	}
	for _, k := range keys {
		assert.Equal(t, k.want, ix.Key(k.id))
	}

	e, ok := ix.Resolve("groc")
	require.True(t, ok)
	assert.Equal(t, "groc", e.ID)

	e, ok = ix.Resolve(" GROCERIES ")
	require.True(t, ok)
	assert.Equal(t, "groc", e.ID)

	_, ok = ix.Resolve("")
	assert.False(t, ok)
	_, ok = ix.Resolve("Travel")
	assert.False(t, ok)

	root, ok := ix.Root("orphan")
	require.True(t, ok)
	assert.Equal(t, "orphan", root.ID)

	assert.Len(t, ix.ByCategory(domain.CategoryExpense), 3)
}
