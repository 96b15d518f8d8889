// Package statements owns the statement state machine:
//
//	new -> processed -> reviewed -> published
//	new/processed -> error (any ingestion failure)
//
// Reprocess restarts a statement from any state. Archive is an orthogonal flag.
package statements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/logger"
	"github.com/dvloznov/spendbook/internal/store"
)

// Service implements the statement lifecycle.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a lifecycle service over s.
func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Create registers an uploaded statement for a bank entity.
func (s *Service) Create(ctx context.Context, bankID, sourceURI string) (*domain.Statement, error) {
	bank, err := s.store.GetEntity(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if bank.Category != domain.CategoryBank {
		return nil, fmt.Errorf("%w: entity %s is %s, not a bank", domain.ErrValidation, bankID, bank.Category)
	}

	st := &domain.Statement{
		ID:         uuid.New().String(),
		BankID:     bankID,
		UploadedAt: s.now().UTC(),
		SourceURI:  strings.TrimSpace(sourceURI),
		Status:     domain.StatusNew,
	}
	if err := s.store.CreateStatement(ctx, st); err != nil {
		return nil, fmt.Errorf("statement create: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("statement_id", st.ID).
		Str("bank_id", bankID).
		Msg("Created statement")
	return st, nil
}

// Get returns one statement.
func (s *Service) Get(ctx context.Context, id string) (*domain.Statement, error) {
	return s.store.GetStatement(ctx, id)
}

// List returns statements matching filter, newest upload first.
func (s *Service) List(ctx context.Context, filter store.StatementFilter) ([]*domain.Statement, error) {
	return s.store.ListStatements(ctx, filter)
}

// Delete removes a statement together with every transaction it owns.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Atomic(ctx, func(tx store.Store) error {
		if _, err := tx.DeleteTransactions(ctx, id); err != nil {
			return fmt.Errorf("statement delete: transactions: %w", err)
		}
		return tx.DeleteStatement(ctx, id)
	})
}

// SetExternalFileID records the extraction service's file id for the statement.
func (s *Service) SetExternalFileID(ctx context.Context, id, fileID string) error {
	return s.mutate(ctx, id, func(st *domain.Statement) error {
		st.ExternalFileID = fileID
		return nil
	})
}

// MarkProcessed moves a statement to processed after a successful ingestion.
func (s *Service) MarkProcessed(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(st *domain.Statement) error {
		now := s.now().UTC()
		st.Status = domain.StatusProcessed
		st.ProcessedAt = &now
		return nil
	})
}

// MarkError records an ingestion failure.
func (s *Service) MarkError(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(st *domain.Statement) error {
		st.Status = domain.StatusError
		return nil
	})
}

// Reprocess deletes every transaction of the statement and resets it to new
// with processed/reviewed/published timestamps cleared, whatever its state.
// The external file id and archive flag are kept. Both steps commit together.
func (s *Service) Reprocess(ctx context.Context, id string) (*domain.Statement, error) {
	var out *domain.Statement
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		st, err := tx.GetStatement(ctx, id)
		if err != nil {
			return err
		}
		n, err := tx.DeleteTransactions(ctx, id)
		if err != nil {
			return fmt.Errorf("reprocess: delete transactions: %w", err)
		}
		st.Status = domain.StatusNew
		st.ProcessedAt = nil
		st.ReviewedAt = nil
		st.PublishedAt = nil
		if err := tx.UpdateStatement(ctx, st); err != nil {
			return fmt.Errorf("reprocess: reset statement: %w", err)
		}

		log := logger.FromContext(ctx)
		log.Info().
			Str("statement_id", id).
			Int("deleted_transactions", n).
			Msg("Statement reset for reprocessing")
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Archive sets the archive flag. It is never cleared automatically.
func (s *Service) Archive(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(st *domain.Statement) error {
		if st.ArchivedAt == nil {
			now := s.now().UTC()
			st.ArchivedAt = &now
		}
		return nil
	})
}

// Unarchive clears the archive flag.
func (s *Service) Unarchive(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(st *domain.Statement) error {
		st.ArchivedAt = nil
		return nil
	})
}

// DeriveStatus is the review-driven status of a statement with the given
// number of unreviewed transactions.
func DeriveStatus(unreviewed int) domain.StatementStatus {
	if unreviewed == 0 {
		return domain.StatusReviewed
	}
	return domain.StatusProcessed
}

// Recompute re-derives the status of statementID from its transactions. It
// must run on the same store view as the review mutation that triggered it.
// Becoming reviewed stamps reviewedAt; demotion leaves it as the last review time.
func (s *Service) Recompute(ctx context.Context, tx store.Store, statementID string) (*domain.Statement, error) {
	unreviewed := false
	n, err := tx.CountTransactions(ctx, store.TransactionFilter{StatementID: statementID, Reviewed: &unreviewed})
	if err != nil {
		return nil, fmt.Errorf("recompute: count unreviewed: %w", err)
	}
	st, err := tx.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	st.Status = DeriveStatus(n)
	if st.Status == domain.StatusReviewed {
		now := s.now().UTC()
		st.ReviewedAt = &now
	}
	if err := tx.UpdateStatement(ctx, st); err != nil {
		return nil, fmt.Errorf("recompute: update statement: %w", err)
	}
	return st, nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*domain.Statement) error) error {
	return s.store.Atomic(ctx, func(tx store.Store) error {
		st, err := tx.GetStatement(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return tx.UpdateStatement(ctx, st)
	})
}
