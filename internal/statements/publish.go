package statements

import (
	"context"
	"fmt"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/logger"
	"github.com/dvloznov/spendbook/internal/store"
)

// Sink receives a reviewed statement and its transactions for external publishing.
type Sink interface {
	Name() string
	Publish(ctx context.Context, st *domain.Statement, txs []*domain.Transaction) error
}

// Publish pushes a reviewed statement to sink and marks it published.
// The statement must be in the reviewed state.
func (s *Service) Publish(ctx context.Context, id string, sink Sink) (*domain.Statement, error) {
	st, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != domain.StatusReviewed {
		return nil, fmt.Errorf("%w: statement %s is %s, want %s", domain.ErrConflict, id, st.Status, domain.StatusReviewed)
	}

	txs, err := s.store.ListTransactions(ctx, store.TransactionFilter{StatementID: id, OrderBy: store.OrderByCreatedAt})
	if err != nil {
		return nil, fmt.Errorf("publish: list transactions: %w", err)
	}
	if err := sink.Publish(ctx, st, txs); err != nil {
		return nil, fmt.Errorf("publish to %s: %w", sink.Name(), err)
	}

	var out *domain.Statement
	err = s.store.Atomic(ctx, func(tx store.Store) error {
		cur, err := tx.GetStatement(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		cur.Status = domain.StatusPublished
		cur.PublishedAt = &now
		out = cur
		return tx.UpdateStatement(ctx, cur)
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("statement_id", id).
		Str("sink", sink.Name()).
		Int("transactions", len(txs)).
		Msg("Published statement")
	return out, nil
}
