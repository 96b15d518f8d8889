// Package memory is an in-process Store used by tests and the "memory" driver.
// Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
)

// Store is a concurrency-safe in-memory store. Records are copied on the way
// in and out so callers never share memory with the store.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newDataset()}
}

// Opener adapts New to store.Opener.
func Opener() store.Opener {
	return func(ctx context.Context) (store.Store, error) {
		return New(), nil
	}
}

type dataset struct {
	entities     map[string]domain.Entity
	statements   map[string]domain.Statement
	transactions map[string]domain.Transaction
}

func newDataset() *dataset {
	return &dataset{
		entities:     make(map[string]domain.Entity),
		statements:   make(map[string]domain.Statement),
		transactions: make(map[string]domain.Transaction),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.entities {
		c.entities[k] = v
	}
	for k, v := range d.statements {
		c.statements[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	return c
}

func (s *Store) read() func() {
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) write() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) CreateEntity(ctx context.Context, e *domain.Entity) error {
	defer s.write()()
	return s.data.createEntity(e)
}

func (s *Store) UpdateEntity(ctx context.Context, e *domain.Entity) error {
	defer s.write()()
	return s.data.updateEntity(e)
}

func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	defer s.write()()
	return s.data.deleteEntity(id)
}

func (s *Store) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	defer s.read()()
	return s.data.getEntity(id)
}

func (s *Store) ListEntities(ctx context.Context, filter store.EntityFilter) ([]*domain.Entity, error) {
	defer s.read()()
	return s.data.listEntities(filter), nil
}

func (s *Store) CreateStatement(ctx context.Context, st *domain.Statement) error {
	defer s.write()()
	return s.data.createStatement(st)
}

func (s *Store) UpdateStatement(ctx context.Context, st *domain.Statement) error {
	defer s.write()()
	return s.data.updateStatement(st)
}

func (s *Store) DeleteStatement(ctx context.Context, id string) error {
	defer s.write()()
	return s.data.deleteStatement(id)
}

func (s *Store) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	defer s.read()()
	return s.data.getStatement(id)
}

func (s *Store) ListStatements(ctx context.Context, filter store.StatementFilter) ([]*domain.Statement, error) {
	defer s.read()()
	return s.data.listStatements(filter), nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	defer s.write()()
	return s.data.createTransaction(tx)
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	defer s.write()()
	return s.data.updateTransaction(tx)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	defer s.read()()
	return s.data.getTransaction(id)
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	defer s.read()()
	return s.data.listTransactions(filter), nil
}

func (s *Store) CountTransactions(ctx context.Context, filter store.TransactionFilter) (int, error) {
	defer s.read()()
	filter.Limit = 0
	return len(s.data.listTransactions(filter)), nil
}

func (s *Store) DeleteTransactions(ctx context.Context, statementID string) (int, error) {
	defer s.write()()
	return s.data.deleteTransactions(statementID), nil
}

// Atomic holds the write lock for the duration of fn and runs it against a
// copy of the data, which replaces the live data only if fn succeeds.
// fn must use the Store it is given, not s.
func (s *Store) Atomic(ctx context.Context, fn func(store.Store) error) error {
	defer s.write()()

	view := &txView{data: s.data.clone()}
	if err := fn(view); err != nil {
		return err
	}
	s.data = view.data
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (d *dataset) createEntity(e *domain.Entity) error {
	if _, ok := d.entities[e.ID]; ok {
		return fmt.Errorf("entity %s already exists", e.ID)
	}
	d.entities[e.ID] = *e
	return nil
}

func (d *dataset) updateEntity(e *domain.Entity) error {
	if _, ok := d.entities[e.ID]; !ok {
		return fmt.Errorf("%w: entity %s", domain.ErrNotFound, e.ID)
	}
	d.entities[e.ID] = *e
	return nil
}

func (d *dataset) deleteEntity(id string) error {
	if _, ok := d.entities[id]; !ok {
		return fmt.Errorf("%w: entity %s", domain.ErrNotFound, id)
	}
	delete(d.entities, id)
	return nil
}

func (d *dataset) getEntity(id string) (*domain.Entity, error) {
	e, ok := d.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", domain.ErrNotFound, id)
	}
	return &e, nil
}

func (d *dataset) listEntities(filter store.EntityFilter) []*domain.Entity {
	out := make([]*domain.Entity, 0, len(d.entities))
	for _, e := range d.entities {
		if !filter.Match(&e) {
			continue
		}
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *dataset) createStatement(st *domain.Statement) error {
	if _, ok := d.statements[st.ID]; ok {
		return fmt.Errorf("statement %s already exists", st.ID)
	}
	d.statements[st.ID] = *st
	return nil
}

func (d *dataset) updateStatement(st *domain.Statement) error {
	if _, ok := d.statements[st.ID]; !ok {
		return fmt.Errorf("%w: statement %s", domain.ErrNotFound, st.ID)
	}
	d.statements[st.ID] = *st
	return nil
}

func (d *dataset) deleteStatement(id string) error {
	if _, ok := d.statements[id]; !ok {
		return fmt.Errorf("%w: statement %s", domain.ErrNotFound, id)
	}
	delete(d.statements, id)
	d.deleteTransactions(id)
	return nil
}

func (d *dataset) getStatement(id string) (*domain.Statement, error) {
	st, ok := d.statements[id]
	if !ok {
		return nil, fmt.Errorf("%w: statement %s", domain.ErrNotFound, id)
	}
	return &st, nil
}

func (d *dataset) listStatements(filter store.StatementFilter) []*domain.Statement {
	out := make([]*domain.Statement, 0, len(d.statements))
	for _, st := range d.statements {
		if !filter.Match(&st) {
			continue
		}
		out = append(out, &st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *dataset) createTransaction(tx *domain.Transaction) error {
	if _, ok := d.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	d.transactions[tx.ID] = *tx
	return nil
}

func (d *dataset) updateTransaction(tx *domain.Transaction) error {
	if _, ok := d.transactions[tx.ID]; !ok {
		return fmt.Errorf("%w: transaction %s", domain.ErrNotFound, tx.ID)
	}
	d.transactions[tx.ID] = *tx
	return nil
}

func (d *dataset) getTransaction(id string) (*domain.Transaction, error) {
	tx, ok := d.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
	}
	return &tx, nil
}

func (d *dataset) listTransactions(filter store.TransactionFilter) []*domain.Transaction {
	out := make([]*domain.Transaction, 0)
	for _, tx := range d.transactions {
		if !filter.Match(&tx) {
			continue
		}
		out = append(out, &tx)
	}
	filter.Sort(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (d *dataset) deleteTransactions(statementID string) int {
	n := 0
	for id, tx := range d.transactions {
		if tx.StatementID == statementID {
			delete(d.transactions, id)
			n++
		}
	}
	return n
}

var _ store.Store = (*Store)(nil)
