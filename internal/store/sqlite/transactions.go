package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
)

const transactionColumns = `id, statement_id, sender_id, recipient_id, created_at, amount, currency,
	description, location, shared, shared_amount, reviewed_at`

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
	INSERT INTO transactions(`+transactionColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.StatementID, nullString(tx.SenderID), nullString(tx.RecipientID), ms(tx.CreatedAt),
		tx.Amount, tx.Currency, tx.Description, tx.Location, tx.Shared, nullInt(tx.SharedAmount),
		nullMs(tx.ReviewedAt))
	if err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	res, err := s.q.ExecContext(ctx, `
	UPDATE transactions SET sender_id = ?, recipient_id = ?, amount = ?, currency = ?, description = ?,
		location = ?, shared = ?, shared_amount = ?, reviewed_at = ?
	WHERE id = ?`,
		nullString(tx.SenderID), nullString(tx.RecipientID), tx.Amount, tx.Currency, tx.Description,
		tx.Location, tx.Shared, nullInt(tx.SharedAmount), nullMs(tx.ReviewedAt), tx.ID)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	return expectOne(res, "transaction", tx.ID)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return tx, nil
}

func transactionWhere(f store.TransactionFilter) (string, []any) {
	var conds []string
	var args []any
	if f.StatementID != "" {
		conds = append(conds, "statement_id = ?")
		args = append(args, f.StatementID)
	}
	if f.Reviewed != nil {
		if *f.Reviewed {
			conds = append(conds, "reviewed_at IS NOT NULL")
		} else {
			conds = append(conds, "reviewed_at IS NULL")
		}
	}
	if f.Shared != nil {
		conds = append(conds, "shared = ?")
		args = append(args, *f.Shared)
	}
	if f.CreatedFrom != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, ms(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, ms(*f.CreatedTo))
	}
	return where(conds), args
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, error) {
	cond, args := transactionWhere(filter)

	col := "created_at"
	if filter.OrderBy == store.OrderByAmount {
		col = "amount"
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions` + cond +
		fmt.Sprintf(` ORDER BY %s %s, id %s`, col, dir, dir)
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) CountTransactions(ctx context.Context, filter store.TransactionFilter) (int, error) {
	cond, args := transactionWhere(filter)
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+cond, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteTransactions(ctx context.Context, statementID string) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE statement_id = ?`, statementID)
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanTransaction(r scanner) (*domain.Transaction, error) {
	var (
		tx                domain.Transaction
		sender, recipient sql.NullString
		created           int64
		sharedAmount      sql.NullInt64
		reviewed          sql.NullInt64
	)
	if err := r.Scan(&tx.ID, &tx.StatementID, &sender, &recipient, &created, &tx.Amount, &tx.Currency,
		&tx.Description, &tx.Location, &tx.Shared, &sharedAmount, &reviewed); err != nil {
		return nil, err
	}
	tx.SenderID = fromNullString(sender)
	tx.RecipientID = fromNullString(recipient)
	tx.CreatedAt = fromMs(created)
	tx.SharedAmount = fromNullInt(sharedAmount)
	tx.ReviewedAt = fromNullMs(reviewed)
	return &tx, nil
}
