// Package publish delivers reviewed statements to external destinations:
// a BigQuery warehouse table, a Notion database and CSV files.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/logger"
)

// Indexer builds the entity index used to label transactions.
type Indexer interface {
	Index(ctx context.Context) (*catalog.Index, error)
}

// Sink is implemented by every destination in this package and satisfies
// statements.Sink.
type Sink interface {
	Name() string
	Publish(ctx context.Context, st *domain.Statement, txs []*domain.Transaction) error
}

// Multi publishes to every sink in order and joins their errors. A failing
// sink does not stop the others.
type Multi []Sink

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m Multi) Publish(ctx context.Context, st *domain.Statement, txs []*domain.Transaction) error {
	if len(m) == 0 {
		return errors.New("no publish sinks configured")
	}
	log := logger.FromContext(ctx)
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, st, txs); err != nil {
			log.Error().Err(err).Str("sink", s.Name()).Str("statement_id", st.ID).Msg("Publish failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		log.Info().Str("sink", s.Name()).Str("statement_id", st.ID).Int("transactions", len(txs)).Msg("Published statement")
	}
	return errors.Join(errs...)
}

// label returns the entity label of a reference, catalog.UnknownKey for a
// dangling one and "" for nil.
func label(ix *catalog.Index, id *string) string {
	if id == nil {
		return ""
	}
	e, ok := ix.Lookup(id)
	if !ok {
		return catalog.UnknownKey
	}
	return e.Label
}

// expenseGroup returns the top-level expense label of the recipient, or ""
// when the recipient is not an expense entity.
func expenseGroup(ix *catalog.Index, recipient *string) string {
	e, ok := ix.Lookup(recipient)
	if !ok || e.Category != domain.CategoryExpense {
		return ""
	}
	root, _ := ix.Root(e.ID)
	return root.Label
}
