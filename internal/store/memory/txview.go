package memory

import (
	"context"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
)

// txView is the Store handed to Atomic callbacks. It works on a private copy
// of the data and takes no locks; the enclosing Atomic holds the write lock.
type txView struct {
	data *dataset
}

func (v *txView) CreateEntity(ctx context.Context, e *domain.Entity) error {
	return v.data.createEntity(e)
}

func (v *txView) UpdateEntity(ctx context.Context, e *domain.Entity) error {
	return v.data.updateEntity(e)
}

func (v *txView) DeleteEntity(ctx context.Context, id string) error {
	return v.data.deleteEntity(id)
}

func (v *txView) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	return v.data.getEntity(id)
}

func (v *txView) ListEntities(ctx context.Context, filter store.EntityFilter) ([]*domain.Entity, error) {
	return v.data.listEntities(filter), nil
}

func (v *txView) CreateStatement(ctx context.Context, st *domain.Statement) error {
	return v.data.createStatement(st)
}

func (v *txView) UpdateStatement(ctx context.Context, st *domain.Statement) error {
	return v.data.updateStatement(st)
}

func (v *txView) DeleteStatement(ctx context.Context, id string) error {
	return v.data.deleteStatement(id)
}

func (v *txView) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	return v.data.getStatement(id)
}

func (v *txView) ListStatements(ctx context.Context, filter store.StatementFilter) ([]*domain.Statement, error) {
	return v.data.listStatements(filter), nil
}

func (v *txView) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	return v.data.createTransaction(tx)
}

func (v *txView) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	return v.data.updateTransaction(tx)
}

func (v *txView) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return v.data.getTransaction(id)
}

func (v *txView) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	return v.data.listTransactions(filter), nil
}

func (v *txView) CountTransactions(ctx context.Context, filter store.TransactionFilter) (int, error) {
	filter.Limit = 0
	return len(v.data.listTransactions(filter)), nil
}

func (v *txView) DeleteTransactions(ctx context.Context, statementID string) (int, error) {
	return v.data.deleteTransactions(statementID), nil
}

// Atomic nests by running fn against the same view.
func (v *txView) Atomic(ctx context.Context, fn func(store.Store) error) error {
	return fn(v)
}

func (v *txView) Close() error {
	return nil
}
