// Package catalog manages the entity hierarchy: banks, expense categories
// (one level of nesting), income sources and savings destinations.
package catalog

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

// EntityInput carries the writable fields of an entity.
type EntityInput struct {
	Label    string          `json:"label"`
	Category domain.Category `json:"category"`
	Prompt   string          `json:"prompt"`
	ParentID *string         `json:"parent_id"`
	Currency string          `json:"currency"`
}

// Service implements entity CRUD and hierarchy rules.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a catalog service over s.
func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Create validates in and stores a new entity.
func (s *Service) Create(ctx context.Context, in EntityInput) (*domain.Entity, error) {
	if err := s.validate(ctx, "", in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &domain.Entity{
		ID:        uuid.New().String(),
		Label:     strings.TrimSpace(in.Label),
		Category:  in.Category,
		Prompt:    in.Prompt,
		ParentID:  normalizeParent(in.ParentID),
		Currency:  strings.ToUpper(strings.TrimSpace(in.Currency)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateEntity(ctx, e); err != nil {
		return nil, fmt.Errorf("catalog create: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("entity_id", e.ID).
		Str("category", string(e.Category)).
		Str("label", e.Label).
		Msg("Created entity")
	return e, nil
}

// Update replaces the writable fields of an existing entity.
func (s *Service) Update(ctx context.Context, id string, in EntityInput) (*domain.Entity, error) {
	e, err := s.store.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, id, in); err != nil {
		return nil, err
	}

	if in.Category != e.Category || normalizeParent(in.ParentID) != nil {
		children, err := s.store.ListEntities(ctx, store.EntityFilter{ParentID: id})
		if err != nil {
			return nil, fmt.Errorf("catalog update: list children: %w", err)
		}
		if len(children) > 0 {
			return nil, fmt.Errorf("%w: entity %s has %d children and must stay a root %s entity",
				domain.ErrValidation, id, len(children), e.Category)
		}
	}

	e.Label = strings.TrimSpace(in.Label)
	e.Category = in.Category
	e.Prompt = in.Prompt
	e.ParentID = normalizeParent(in.ParentID)
	e.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	e.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateEntity(ctx, e); err != nil {
		return nil, fmt.Errorf("catalog update: %w", err)
	}
	return e, nil
}

// Delete removes an entity. It does not touch children or transactions that
// reference it; readers treat such references as dangling.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteEntity(ctx, id); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().Str("entity_id", id).Msg("Deleted entity")
	return nil
}

// Get returns one entity.
func (s *Service) Get(ctx context.Context, id string) (*domain.Entity, error) {
	return s.store.GetEntity(ctx, id)
}

// List returns entities of a category, or all entities when category is empty.
func (s *Service) List(ctx context.Context, category domain.Category) ([]*domain.Entity, error) {
	return s.store.ListEntities(ctx, store.EntityFilter{Category: category})
}

// TopParent walks parent links from id to the root ancestor.
func (s *Service) TopParent(ctx context.Context, id string) (*domain.Entity, error) {
	ix, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	root, ok := ix.Root(id)
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", domain.ErrNotFound, id)
	}
	return root, nil
}

// Index loads the whole catalog into an id-keyed index.
func (s *Service) Index(ctx context.Context) (*Index, error) {
	all, err := s.store.ListEntities(ctx, store.EntityFilter{})
	if err != nil {
		return nil, fmt.Errorf("catalog index: %w", err)
	}
	return NewIndex(all), nil
}

func (s *Service) validate(ctx context.Context, selfID string, in EntityInput) error {
	if strings.TrimSpace(in.Label) == "" {
		return fmt.Errorf("%w: label is required", domain.ErrValidation)
	}
	if _, err := domain.ParseCategory(string(in.Category)); err != nil {
		return err
	}

	parentID := normalizeParent(in.ParentID)
	if parentID == nil {
		return nil
	}
	if in.Category != domain.CategoryExpense {
		return fmt.Errorf("%w: only expense entities may have a parent", domain.ErrValidation)
	}
	if *parentID == selfID {
		return fmt.Errorf("%w: entity cannot be its own parent", domain.ErrValidation)
	}
	parent, err := s.store.GetEntity(ctx, *parentID)
	if err != nil {
		return fmt.Errorf("%w: parent %s: %v", domain.ErrValidation, *parentID, err)
	}
	if parent.Category != in.Category {
		return fmt.Errorf("%w: parent %s is %s, want %s", domain.ErrValidation, parent.ID, parent.Category, in.Category)
	}
	if !parent.IsRoot() {
		return fmt.Errorf("%w: parent %s is itself nested", domain.ErrValidation, parent.ID)
	}
	return nil
}

func normalizeParent(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}
