// Package transactions stores statement-owned transactions and keeps the
// owning statement's derived status in step with review changes.
package transactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/logger"
	"github.com/dvloznov/spendbook/internal/statements"
	"github.com/dvloznov/spendbook/internal/store"
)

// CreateInput carries a new transaction. A zero CreatedAt means now.
type CreateInput struct {
	StatementID  string
	SenderID     *string
	RecipientID  *string
	CreatedAt    time.Time
	Amount       int64
	Currency     string
	Description  string
	Location     string
	Shared       bool
	SharedAmount *int64
	ReviewedAt   *time.Time
}

// Service implements the transaction store operations.
type Service struct {
	store     store.Store
	lifecycle *statements.Service
	now       func() time.Time
}

// NewService creates a transaction service. lifecycle re-derives statement
// status after review mutations.
func NewService(s store.Store, lifecycle *statements.Service) *Service {
	return &Service{store: s, lifecycle: lifecycle, now: time.Now}
}

// Create validates and stores one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:           uuid.New().String(),
		StatementID:  in.StatementID,
		SenderID:     in.SenderID,
		RecipientID:  in.RecipientID,
		CreatedAt:    in.CreatedAt.UTC(),
		Amount:       in.Amount,
		Currency:     strings.ToUpper(strings.TrimSpace(in.Currency)),
		Description:  strings.TrimSpace(in.Description),
		Location:     strings.TrimSpace(in.Location),
		Shared:       in.Shared,
		SharedAmount: in.SharedAmount,
		ReviewedAt:   in.ReviewedAt,
	}
	if in.CreatedAt.IsZero() {
		tx.CreatedAt = s.now().UTC()
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetStatement(ctx, in.StatementID); err != nil {
		return nil, err
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("transaction create: %w", err)
	}
	return tx, nil
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// ListByStatement returns a statement's transactions, newest first.
func (s *Service) ListByStatement(ctx context.Context, statementID string) ([]*domain.Transaction, error) {
	return s.store.ListTransactions(ctx, store.TransactionFilter{
		StatementID: statementID,
		OrderBy:     store.OrderByCreatedAt,
		Desc:        true,
	})
}

// Update applies a sparse patch. When the patch carries reviewedAt, the owning
// statement's status is re-derived in the same atomic unit.
func (s *Service) Update(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := s.store.Atomic(ctx, func(st store.Store) error {
		tx, err := st.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(tx)
		if err := tx.Validate(); err != nil {
			return err
		}
		if err := st.UpdateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("transaction update: %w", err)
		}
		if patch.TouchesReview() {
			stmt, err := s.lifecycle.Recompute(ctx, st, tx.StatementID)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			log.Debug().
				Str("transaction_id", id).
				Str("statement_id", stmt.ID).
				Str("status", string(stmt.Status)).
				Msg("Statement status recomputed")
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReviewStatement sets or clears reviewedAt on every transaction of a
// statement and re-derives its status.
func (s *Service) ReviewStatement(ctx context.Context, statementID string, reviewed bool) (*domain.Statement, error) {
	var out *domain.Statement
	err := s.store.Atomic(ctx, func(st store.Store) error {
		txs, err := st.ListTransactions(ctx, store.TransactionFilter{StatementID: statementID})
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for _, tx := range txs {
			if tx.Reviewed() == reviewed {
				continue
			}
			if reviewed {
				tx.ReviewedAt = &now
			} else {
				tx.ReviewedAt = nil
			}
			if err := st.UpdateTransaction(ctx, tx); err != nil {
				return fmt.Errorf("review statement: %w", err)
			}
		}
		stmt, err := s.lifecycle.Recompute(ctx, st, statementID)
		if err != nil {
			return err
		}
		out = stmt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
