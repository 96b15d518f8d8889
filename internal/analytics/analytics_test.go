package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store/memory"
)

var (
	jan1  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan15 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	jan31 = time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	feb10 = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
)

type seed struct {
	store *memory.Store
	n     int
}

func newSeed(t *testing.T) *seed {
	return &seed{store: memory.New()}
}

func (s *seed) entity(t *testing.T, id, label string, cat domain.Category, parent *string) *domain.Entity {
	t.Helper()
	e := &domain.Entity{ID: id, Label: label, Category: cat, ParentID: parent, CreatedAt: jan1, UpdatedAt: jan1}
	require.NoError(t, s.store.CreateEntity(context.Background(), e))
	return e
}

func (s *seed) statement(t *testing.T, id, bankID string) {
	t.Helper()
	require.NoError(t, s.store.CreateStatement(context.Background(), &domain.Statement{
		ID: id, BankID: bankID, UploadedAt: jan1, Status: domain.StatusProcessed,
	}))
}

type txOpt func(*domain.Transaction)

func unreviewed(tx *domain.Transaction) { tx.ReviewedAt = nil }

func shared(part int64) txOpt {
	return func(tx *domain.Transaction) {
		tx.Shared = true
		tx.SharedAmount = &part
	}
}

func at(ts time.Time) txOpt {
	return func(tx *domain.Transaction) { tx.CreatedAt = ts }
}

func (s *seed) tx(t *testing.T, stmt string, sender, recipient *string, amount int64, opts ...txOpt) *domain.Transaction {
	t.Helper()
	s.n++
	reviewed := jan31
	tx := &domain.Transaction{
		ID:          string(rune('a'+s.n-1)) + "-tx",
		StatementID: stmt,
		SenderID:    sender,
		RecipientID: recipient,
		CreatedAt:   jan15,
		Amount:      amount,
		Currency:    "GBP",
		Description: "tx",
		ReviewedAt:  &reviewed,
	}
	for _, o := range opts {
		o(tx)
	}
	require.NoError(t, s.store.CreateTransaction(context.Background(), tx))
	return tx
}

func ms(ts time.Time) int64 { return ts.UnixMilli() }

func ref(s string) *string { return &s }

func TestRootParentOfRootIsItself(t *testing.T) {
	s := newSeed(t)
	food := s.entity(t, "food", "Food", domain.CategoryExpense, nil)
	s.entity(t, "groceries", "Groceries", domain.CategoryExpense, ref("food"))
	s.entity(t, "bank", "Barclays", domain.CategoryBank, nil)

	svc := NewService(s.store)
	ix, err := svc.index(context.Background())
	require.NoError(t, err)

	for _, e := range ix.ByCategory(domain.CategoryExpense) {
		if !e.IsRoot() {
			continue
		}
		root, ok := ix.Root(e.ID)
		require.True(t, ok)
		assert.Equal(t, e.ID, root.ID)
	}
	root, _ := ix.Root("groceries")
	assert.Equal(t, food.ID, root.ID)
}

func TestSummarizeExpensesByParent(t *testing.T) {
	ctx := context.Background()

	t.Run("child rolls up to parent", func(t *testing.T) {
		s := newSeed(t)
		s.entity(t, "bank", "Barclays", domain.CategoryBank, nil)
		s.entity(t, "food", "Food", domain.CategoryExpense, nil)
		s.entity(t, "groceries", "Groceries", domain.CategoryExpense, ref("food"))
		s.statement(t, "st", "bank")
		s.tx(t, "st", ref("bank"), ref("groceries"), 100)

		got, err := NewService(s.store).SummarizeExpensesByParent(ctx, ms(jan1), ms(jan31))
		require.NoError(t, err)
		assert.Equal(t, []ParentTotal{{ParentID: "food", ParentLabel: "Food", Total: 100}}, got)
	})

	t.Run("sorted descending and unreviewed excluded", func(t *testing.T) {
		s := newSeed(t)
		s.entity(t, "bank", "Barclays", domain.CategoryBank, nil)
		s.entity(t, "food", "Food", domain.CategoryExpense, nil)
		s.entity(t, "rent", "Rent", domain.CategoryExpense, nil)
		s.entity(t, "salary", "Salary", domain.CategoryIncome, nil)
		s.statement(t, "st", "bank")
		s.tx(t, "st", ref("bank"), ref("food"), 40)
		s.tx(t, "st", ref("bank"), ref("rent"), 900)
		s.tx(t, "st", ref("bank"), ref("food"), 5000, unreviewed)
		s.tx(t, "st", ref("salary"), ref("bank"), 3000)
		s.tx(t, "st", ref("bank"), ref("food"), 70, at(feb10))

		got, err := NewService(s.store).SummarizeExpensesByParent(ctx, ms(jan1), ms(jan31))
		require.NoError(t, err)
		assert.Equal(t, []ParentTotal{
			{ParentID: "rent", ParentLabel: "Rent", Total: 900},
			{ParentID: "food", ParentLabel: "Food", Total: 40},
		}, got)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := NewService(memory.New()).SummarizeExpensesByParent(ctx, ms(jan1), ms(jan31))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestComputeKeyMetrics(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	s.entity(t, "bank", "Barclays", domain.CategoryBank, nil)
	s.entity(t, "salary", "Salary", domain.CategoryIncome, nil)
	s.entity(t, "food", "Food", domain.CategoryExpense, nil)
	s.entity(t, "isa", "ISA", domain.CategorySavings, nil)
	s.statement(t, "st", "bank")
	s.tx(t, "st", ref("salary"), ref("bank"), 3000)
	s.tx(t, "st", ref("bank"), ref("food"), 40, shared(10))
	s.tx(t, "st", ref("bank"), ref("food"), 40, shared(10), unreviewed)
	s.tx(t, "st", ref("bank"), ref("isa"), 800)
	s.tx(t, "st", ref("isa"), ref("bank"), 200)
	svc := NewService(s.store)

	t.Run("empty id sets", func(t *testing.T) {
		got, err := svc.ComputeKeyMetrics(ctx, ms(jan1), ms(jan31), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, KeyMetrics{}, got)
	})

	t.Run("full", func(t *testing.T) {
		got, err := svc.ComputeKeyMetrics(ctx, ms(jan1), ms(jan31), []string{"salary"}, []string{"isa"})
		require.NoError(t, err)
		assert.Equal(t, KeyMetrics{
			Income:       3000,
			Expenses:     40,
			Savings:      600,
			Cashflow:     2960,
			SavingsRatio: 0.2,
			SplitCredit:  30,
		}, got)
	})

	t.Run("no income gives zero ratio", func(t *testing.T) {
		got, err := svc.ComputeKeyMetrics(ctx, ms(jan1), ms(jan31), nil, []string{"isa"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Income)
		assert.Equal(t, int64(600), got.Savings)
		assert.Equal(t, 0.0, got.SavingsRatio)
	})
}

func TestSplitCreditRequiresReview(t *testing.T) {
	ctx := context.Background()
	for _, tt := range []struct {
		name     string
		reviewed bool
		want     int64
	}{
		{name: "reviewed", reviewed: true, want: 30},
		{name: "unreviewed", reviewed: false, want: 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := newSeed(t)
			s.entity(t, "bank", "Barclays", domain.CategoryBank, nil)
			s.entity(t, "salary", "Salary", domain.CategoryIncome, nil)
			s.entity(t, "food", "Food", domain.CategoryExpense, nil)
			s.statement(t, "st", "bank")
			opts := []txOpt{shared(10)}
			if !tt.reviewed {
				opts = append(opts, unreviewed)
			}
			s.tx(t, "st", ref("bank"), ref("food"), 40, opts...)

			got, err := NewService(s.store).ComputeKeyMetrics(ctx, ms(jan1), ms(jan31), []string{"salary"}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SplitCredit)
		})
	}
}

func TestCountAndBankSummary(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	s.entity(t, "barclays", "Barclays", domain.CategoryBank, nil)
	s.entity(t, "monzo", "Monzo", domain.CategoryBank, nil)
	s.entity(t, "food", "Food", domain.CategoryExpense, nil)
	s.statement(t, "st", "barclays")
	s.tx(t, "st", ref("barclays"), ref("food"), 10)
	s.tx(t, "st", ref("barclays"), ref("food"), 15)
	s.tx(t, "st", ref("barclays"), ref("food"), 99, unreviewed)
	s.tx(t, "st", ref("barclays"), ref("food"), 7, at(feb10))
	svc := NewService(s.store)

	n, err := svc.CountReviewed(ctx, ms(jan1), ms(jan31))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	banks, err := svc.SummarizeBanks(ctx, ms(jan1), ms(jan31))
	require.NoError(t, err)
	assert.Equal(t, []BankSummary{
		{BankID: "barclays", Label: "Barclays", Count: 2, Total: 25},
		{BankID: "monzo", Label: "Monzo", Count: 0, Total: 0},
	}, banks)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	s := newSeed(t)
	s.entity(t, "bank", "Barclays Current", domain.CategoryBank, nil)
	s.entity(t, "food", "Food", domain.CategoryExpense, nil)
	s.entity(t, "groceries", "Groceries", domain.CategoryExpense, ref("food"))
	s.statement(t, "st", "bank")
	tx := s.tx(t, "st", ref("bank"), ref("groceries"), 42)
	s.tx(t, "st", ref("bank"), ref("deleted-entity"), 5, at(jan15.Add(time.Hour)))
	s.tx(t, "st", ref("bank"), ref("food"), 99, unreviewed)

	var buf bytes.Buffer
	n, err := NewService(s.store).ExportCSV(ctx, &buf, ms(jan1), ms(jan31))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id,date,description,amount,sender,recipient", joinRow(rows[0]))
	assert.Equal(t, []string{tx.ID, "2024-01-15T10:00:00Z", "tx", "42", "bankBarclaysCurrent", "expenseFoodGroceries"}, rows[1])
	assert.Equal(t, "unknown", rows[2][5])

	buf.Reset()
	n, err = NewService(memory.New()).ExportCSV(ctx, &buf, ms(jan1), ms(jan31))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "id,date,description,amount,sender,recipient\n", buf.String())
}

func joinRow(row []string) string {
	var b bytes.Buffer
	for i, f := range row {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f)
	}
	return b.String()
}
