package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/spendbook/internal/domain"
)

// Opener constructs a connected Store.
type Opener func(ctx context.Context) (Store, error)

// Handle owns the process-wide store connection. It implements Store by
// delegating to the currently open backend, so Reconfigure swaps the backend
// under every component holding the handle.
type Handle struct {
	mu      sync.RWMutex
	open    Opener
	current Store
}

// NewHandle returns an unopened handle.
func NewHandle(open Opener) *Handle {
	return &Handle{open: open}
}

// Open connects the backend. Calling Open on an open handle is a no-op.
func (h *Handle) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		return nil
	}
	s, err := h.open(ctx)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	h.current = s
	return nil
}

// Reconfigure closes the current backend and opens a new one with open.
// A nil open reuses the previous opener.
func (h *Handle) Reconfigure(ctx context.Context, open Opener) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if open != nil {
		h.open = open
	}
	if h.current != nil {
		if err := h.current.Close(); err != nil {
			return fmt.Errorf("store reconfigure: close: %w", err)
		}
		h.current = nil
	}
	s, err := h.open(ctx)
	if err != nil {
		return fmt.Errorf("store reconfigure: open: %w", err)
	}
	h.current = s
	return nil
}

// Close tears down the backend. The handle may be reopened afterwards.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		return nil
	}
	err := h.current.Close()
	h.current = nil
	return err
}

func (h *Handle) backend() (Store, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil, fmt.Errorf("store handle is not open")
	}
	return h.current, nil
}

func (h *Handle) CreateEntity(ctx context.Context, e *domain.Entity) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.CreateEntity(ctx, e)
}

func (h *Handle) UpdateEntity(ctx context.Context, e *domain.Entity) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.UpdateEntity(ctx, e)
}

func (h *Handle) DeleteEntity(ctx context.Context, id string) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.DeleteEntity(ctx, id)
}

func (h *Handle) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	s, err := h.backend()
	if err != nil {
		return nil, err
	}
	return s.GetEntity(ctx, id)
}

func (h *Handle) ListEntities(ctx context.Context, filter EntityFilter) ([]*domain.Entity, error) {
	s, err := h.backend()
	if err != nil {
		return nil, err
	}
	return s.ListEntities(ctx, filter)
}

func (h *Handle) CreateStatement(ctx context.Context, st *domain.Statement) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.CreateStatement(ctx, st)
}

func (h *Handle) UpdateStatement(ctx context.Context, st *domain.Statement) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.UpdateStatement(ctx, st)
}

func (h *Handle) DeleteStatement(ctx context.Context, id string) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.DeleteStatement(ctx, id)
}

func (h *Handle) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	s, err := h.backend()
	if err != nil {
		return nil, err
	}
	return s.GetStatement(ctx, id)
}

func (h *Handle) ListStatements(ctx context.Context, filter StatementFilter) ([]*domain.Statement, error) {
	s, err := h.backend()
	if err != nil {
		return nil, err
	}
	return s.ListStatements(ctx, filter)
}

func (h *Handle) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.CreateTransaction(ctx, tx)
}

func (h *Handle) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.UpdateTransaction(ctx, tx)
}

func (h *Handle) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s, err := h.backend()
	if err != nil {
		return nil, err
	}
	return s.GetTransaction(ctx, id)
}

func (h *Handle) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error) {
	s, err := h.backend()
	if err != nil {
		return nil, err
	}
	return s.ListTransactions(ctx, filter)
}

func (h *Handle) CountTransactions(ctx context.Context, filter TransactionFilter) (int, error) {
	s, err := h.backend()
	if err != nil {
		return 0, err
	}
	return s.CountTransactions(ctx, filter)
}

func (h *Handle) DeleteTransactions(ctx context.Context, statementID string) (int, error) {
	s, err := h.backend()
	if err != nil {
		return 0, err
	}
	return s.DeleteTransactions(ctx, statementID)
}

func (h *Handle) Atomic(ctx context.Context, fn func(Store) error) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.Atomic(ctx, fn)
}

var _ Store = (*Handle)(nil)
