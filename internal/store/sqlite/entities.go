package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
)

const entityColumns = `id, label, category, prompt, parent_id, currency, created_at, updated_at`

func (s *Store) CreateEntity(ctx context.Context, e *domain.Entity) error {
	_, err := s.q.ExecContext(ctx, `
	INSERT INTO entities(`+entityColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Label, string(e.Category), e.Prompt, nullString(e.ParentID), e.Currency,
		ms(e.CreatedAt), ms(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("CreateEntity: %w", err)
	}
	return nil
}

func (s *Store) UpdateEntity(ctx context.Context, e *domain.Entity) error {
	res, err := s.q.ExecContext(ctx, `
	UPDATE entities SET label = ?, category = ?, prompt = ?, parent_id = ?, currency = ?, updated_at = ?
	WHERE id = ?`,
		e.Label, string(e.Category), e.Prompt, nullString(e.ParentID), e.Currency, ms(e.UpdatedAt), e.ID)
	if err != nil {
		return fmt.Errorf("UpdateEntity: %w", err)
	}
	return expectOne(res, "entity", e.ID)
}

func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteEntity: %w", err)
	}
	return expectOne(res, "entity", id)
}

func (s *Store) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, notFound(err, "entity", id)
	}
	return e, nil
}

func (s *Store) ListEntities(ctx context.Context, filter store.EntityFilter) ([]*domain.Entity, error) {
	var conds []string
	var args []any
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.ParentID != "" {
		conds = append(conds, "parent_id = ?")
		args = append(args, filter.ParentID)
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities`+where(conds)+` ORDER BY category, label, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEntities: %w", err)
	}
	defer rows.Close()

	var out []*domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("ListEntities: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(r scanner) (*domain.Entity, error) {
	var (
		e        domain.Entity
		category string
		parentID sql.NullString
		created  int64
		updated  int64
	)
	if err := r.Scan(&e.ID, &e.Label, &category, &e.Prompt, &parentID, &e.Currency, &created, &updated); err != nil {
		return nil, err
	}
	e.Category = domain.Category(category)
	e.ParentID = fromNullString(parentID)
	e.CreatedAt = fromMs(created)
	e.UpdatedAt = fromMs(updated)
	return &e, nil
}
