package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
)

const statementColumns = `id, bank_id, uploaded_at, source_uri, external_file_id, status,
	processed_at, reviewed_at, published_at, archived_at`

func (s *Store) CreateStatement(ctx context.Context, st *domain.Statement) error {
	_, err := s.q.ExecContext(ctx, `
	INSERT INTO statements(`+statementColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.BankID, ms(st.UploadedAt), st.SourceURI, st.ExternalFileID, string(st.Status),
		nullMs(st.ProcessedAt), nullMs(st.ReviewedAt), nullMs(st.PublishedAt), nullMs(st.ArchivedAt))
	if err != nil {
		return fmt.Errorf("CreateStatement: %w", err)
	}
	return nil
}

func (s *Store) UpdateStatement(ctx context.Context, st *domain.Statement) error {
	res, err := s.q.ExecContext(ctx, `
	UPDATE statements SET bank_id = ?, uploaded_at = ?, source_uri = ?, external_file_id = ?, status = ?,
		processed_at = ?, reviewed_at = ?, published_at = ?, archived_at = ?
	WHERE id = ?`,
		st.BankID, ms(st.UploadedAt), st.SourceURI, st.ExternalFileID, string(st.Status),
		nullMs(st.ProcessedAt), nullMs(st.ReviewedAt), nullMs(st.PublishedAt), nullMs(st.ArchivedAt), st.ID)
	if err != nil {
		return fmt.Errorf("UpdateStatement: %w", err)
	}
	return expectOne(res, "statement", st.ID)
}

// DeleteStatement removes the statement; its transactions go with it through
// the ON DELETE CASCADE foreign key.
func (s *Store) DeleteStatement(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM statements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteStatement: %w", err)
	}
	return expectOne(res, "statement", id)
}

func (s *Store) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+statementColumns+` FROM statements WHERE id = ?`, id)
	st, err := scanStatement(row)
	if err != nil {
		return nil, notFound(err, "statement", id)
	}
	return st, nil
}

func (s *Store) ListStatements(ctx context.Context, filter store.StatementFilter) ([]*domain.Statement, error) {
	var conds []string
	var args []any
	if filter.BankID != "" {
		conds = append(conds, "bank_id = ?")
		args = append(args, filter.BankID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Archived != nil {
		if *filter.Archived {
			conds = append(conds, "archived_at IS NOT NULL")
		} else {
			conds = append(conds, "archived_at IS NULL")
		}
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+statementColumns+` FROM statements`+where(conds)+` ORDER BY uploaded_at DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("ListStatements: %w", err)
	}
	defer rows.Close()

	var out []*domain.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("ListStatements: scan: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanStatement(r scanner) (*domain.Statement, error) {
	var (
		st                                       domain.Statement
		status                                   string
		uploaded                                 int64
		processed, reviewed, published, archived sql.NullInt64
	)
	if err := r.Scan(&st.ID, &st.BankID, &uploaded, &st.SourceURI, &st.ExternalFileID, &status,
		&processed, &reviewed, &published, &archived); err != nil {
		return nil, err
	}
	st.Status = domain.StatementStatus(status)
	st.UploadedAt = fromMs(uploaded)
	st.ProcessedAt = fromNullMs(processed)
	st.ReviewedAt = fromNullMs(reviewed)
	st.PublishedAt = fromNullMs(published)
	st.ArchivedAt = fromNullMs(archived)
	return &st, nil
}
