package store

import (
	"context"
	"sort"
	"time"

	"github.com/dvloznov/spendbook/internal/domain"
)

// Store persists entities, statements and transactions. Get/Update/Delete of
// an unknown id return an error wrapping domain.ErrNotFound.
type Store interface {
	CreateEntity(ctx context.Context, e *domain.Entity) error
	UpdateEntity(ctx context.Context, e *domain.Entity) error
	DeleteEntity(ctx context.Context, id string) error
	GetEntity(ctx context.Context, id string) (*domain.Entity, error)
	ListEntities(ctx context.Context, filter EntityFilter) ([]*domain.Entity, error)

	CreateStatement(ctx context.Context, s *domain.Statement) error
	UpdateStatement(ctx context.Context, s *domain.Statement) error
	DeleteStatement(ctx context.Context, id string) error
	GetStatement(ctx context.Context, id string) (*domain.Statement, error)
	ListStatements(ctx context.Context, filter StatementFilter) ([]*domain.Statement, error)

	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)
	CountTransactions(ctx context.Context, filter TransactionFilter) (int, error)
	// DeleteTransactions removes every transaction owned by a statement and
	// returns how many were removed.
	DeleteTransactions(ctx context.Context, statementID string) (int, error)

	// Atomic runs fn against a view of the store whose writes become visible
	// together, or not at all when fn returns an error.
	Atomic(ctx context.Context, fn func(Store) error) error

	Close() error
}

// EntityFilter selects entities. Zero fields match everything.
type EntityFilter struct {
	Category domain.Category
	ParentID string
}

// Match reports whether e passes the filter.
func (f EntityFilter) Match(e *domain.Entity) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.ParentID != "" && (e.ParentID == nil || *e.ParentID != f.ParentID) {
		return false
	}
	return true
}

// StatementFilter selects statements. Archived nil matches both states.
type StatementFilter struct {
	BankID   string
	Status   domain.StatementStatus
	Archived *bool
}

// Match reports whether s passes the filter.
func (f StatementFilter) Match(s *domain.Statement) bool {
	if f.BankID != "" && s.BankID != f.BankID {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Archived != nil && s.Archived() != *f.Archived {
		return false
	}
	return true
}

// TransactionOrder names a sortable transaction column.
type TransactionOrder string

const (
	OrderByCreatedAt TransactionOrder = "created_at"
	OrderByAmount    TransactionOrder = "amount"
)

// TransactionFilter selects transactions. The createdAt window is inclusive
// on both ends; nil bounds are open.
type TransactionFilter struct {
	StatementID string
	Reviewed    *bool
	Shared      *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time

	OrderBy TransactionOrder
	Desc    bool
	Limit   int
}

// Match reports whether tx passes the filter. Ordering and limit are ignored.
func (f TransactionFilter) Match(tx *domain.Transaction) bool {
	if f.StatementID != "" && tx.StatementID != f.StatementID {
		return false
	}
	if f.Reviewed != nil && tx.Reviewed() != *f.Reviewed {
		return false
	}
	if f.Shared != nil && tx.Shared != *f.Shared {
		return false
	}
	if f.CreatedFrom != nil && tx.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && tx.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

// Sort orders txs in place according to the filter. Ties break on id so the
// result is deterministic.
func (f TransactionFilter) Sort(txs []*domain.Transaction) {
	less := func(a, b *domain.Transaction) int {
		switch f.OrderBy {
		case OrderByAmount:
			if a.Amount != b.Amount {
				if a.Amount < b.Amount {
					return -1
				}
				return 1
			}
		default:
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	}
	sort.SliceStable(txs, func(i, j int) bool {
		c := less(txs[i], txs[j])
		if f.Desc {
			return c > 0
		}
		return c < 0
	})
}

// Window returns an inclusive createdAt window from epoch milliseconds.
func Window(startMs, endMs int64) (from, to *time.Time) {
	s := time.UnixMilli(startMs).UTC()
	e := time.UnixMilli(endMs).UTC()
	return &s, &e
}
