// Package analytics aggregates reviewed transactions over an epoch-millisecond
// window. Unreviewed transactions never contribute to any result, and empty
// data yields zeroed results rather than errors.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
)

// ParentTotal is the expense total of one top-level expense category.
type ParentTotal struct {
	ParentID    string `json:"parentId"`
	ParentLabel string `json:"parentLabel"`
	Total       int64  `json:"total"`
}

// KeyMetrics summarizes a window.
type KeyMetrics struct {
	Income       int64   `json:"income"`
	Expenses     int64   `json:"expenses"`
	Savings      int64   `json:"savings"`
	Cashflow     int64   `json:"cashflow"`
	SavingsRatio float64 `json:"savingsRatio"`
	SplitCredit  int64   `json:"splitCredit"`
}

// BankSummary is the reviewed activity of one bank's statements.
type BankSummary struct {
	BankID string `json:"bankId"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Total  int64  `json:"total"`
}

// Service computes aggregates from the store.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// reviewed loads the reviewed transactions created within [startMs, endMs].
func (s *Service) reviewed(ctx context.Context, startMs, endMs int64) ([]*domain.Transaction, error) {
	from, to := store.Window(startMs, endMs)
	yes := true
	txs, err := s.store.ListTransactions(ctx, store.TransactionFilter{
		Reviewed:    &yes,
		CreatedFrom: from,
		CreatedTo:   to,
		OrderBy:     store.OrderByCreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: list transactions: %w", err)
	}
	return txs, nil
}

func (s *Service) index(ctx context.Context) (*catalog.Index, error) {
	entities, err := s.store.ListEntities(ctx, store.EntityFilter{})
	if err != nil {
		return nil, fmt.Errorf("analytics: list entities: %w", err)
	}
	return catalog.NewIndex(entities), nil
}

// SummarizeExpensesByParent buckets the full amount of every reviewed
// transaction paid to an expense entity under that entity's top ancestor.
// Buckets are sorted by descending total, then label.
func (s *Service) SummarizeExpensesByParent(ctx context.Context, startMs, endMs int64) ([]ParentTotal, error) {
	ix, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.reviewed(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	buckets := map[string]*ParentTotal{}
	for _, tx := range txs {
		recipient, ok := ix.Lookup(tx.RecipientID)
		if !ok || recipient.Category != domain.CategoryExpense {
			continue
		}
		root, _ := ix.Root(recipient.ID)
		b, ok := buckets[root.ID]
		if !ok {
			b = &ParentTotal{ParentID: root.ID, ParentLabel: root.Label}
			buckets[root.ID] = b
		}
		b.Total += tx.Amount
	}

	out := make([]ParentTotal, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].ParentLabel != out[j].ParentLabel {
			return out[i].ParentLabel < out[j].ParentLabel
		}
		return out[i].ParentID < out[j].ParentID
	})
	return out, nil
}

// ComputeKeyMetrics derives income, expenses, savings and split credit for
// the window. Income counts transactions sent by an incomeIDs entity;
// savings nets transactions touching a savingsIDs entity. When both id sets
// are empty every metric is zero.
func (s *Service) ComputeKeyMetrics(ctx context.Context, startMs, endMs int64, incomeIDs, savingsIDs []string) (KeyMetrics, error) {
	var m KeyMetrics
	if len(incomeIDs) == 0 && len(savingsIDs) == 0 {
		return m, nil
	}

	ix, err := s.index(ctx)
	if err != nil {
		return m, err
	}
	txs, err := s.reviewed(ctx, startMs, endMs)
	if err != nil {
		return m, err
	}

	income := toSet(incomeIDs)
	savings := toSet(savingsIDs)
	for _, tx := range txs {
		if tx.SenderID != nil && income[*tx.SenderID] {
			m.Income += tx.Amount
		}
		if recipient, ok := ix.Lookup(tx.RecipientID); ok && recipient.Category == domain.CategoryExpense {
			m.Expenses += tx.Amount
		}
		if tx.RecipientID != nil && savings[*tx.RecipientID] {
			m.Savings += tx.Amount
		}
		if tx.SenderID != nil && savings[*tx.SenderID] {
			m.Savings -= tx.Amount
		}
		if tx.Shared {
			m.SplitCredit += tx.Amount - deref(tx.SharedAmount)
		}
	}

	m.Cashflow = m.Income - m.Expenses
	if m.Income > 0 {
		m.SavingsRatio = float64(m.Savings) / float64(m.Income)
	}
	return m, nil
}

// CountReviewed returns the number of reviewed transactions in the window.
func (s *Service) CountReviewed(ctx context.Context, startMs, endMs int64) (int, error) {
	from, to := store.Window(startMs, endMs)
	yes := true
	n, err := s.store.CountTransactions(ctx, store.TransactionFilter{
		Reviewed:    &yes,
		CreatedFrom: from,
		CreatedTo:   to,
	})
	if err != nil {
		return 0, fmt.Errorf("analytics: count transactions: %w", err)
	}
	return n, nil
}

// SummarizeBanks groups reviewed transactions by the bank owning their
// statement. Every bank appears, with zero count and total when idle.
func (s *Service) SummarizeBanks(ctx context.Context, startMs, endMs int64) ([]BankSummary, error) {
	banks, err := s.store.ListEntities(ctx, store.EntityFilter{Category: domain.CategoryBank})
	if err != nil {
		return nil, fmt.Errorf("analytics: list banks: %w", err)
	}
	stmts, err := s.store.ListStatements(ctx, store.StatementFilter{})
	if err != nil {
		return nil, fmt.Errorf("analytics: list statements: %w", err)
	}
	txs, err := s.reviewed(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	bankOf := make(map[string]string, len(stmts))
	for _, st := range stmts {
		bankOf[st.ID] = st.BankID
	}

	out := make([]BankSummary, len(banks))
	pos := make(map[string]int, len(banks))
	for i, b := range banks {
		out[i] = BankSummary{BankID: b.ID, Label: b.Label}
		pos[b.ID] = i
	}
	for _, tx := range txs {
		i, ok := pos[bankOf[tx.StatementID]]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].Total += tx.Amount
	}
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func deref(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
