package publish

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
)

// WarehouseRow is one published transaction in the warehouse table.
type WarehouseRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	StatementID   string `bigquery:"statement_id"`   // REQUIRED
	BankID        string `bigquery:"bank_id"`        // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	Currency        string     `bigquery:"currency"`

	Description string              `bigquery:"description"`
	Location    bigquery.NullString `bigquery:"location"`

	SenderKey    bigquery.NullString `bigquery:"sender_key"`
	RecipientKey bigquery.NullString `bigquery:"recipient_key"`
	ExpenseGroup bigquery.NullString `bigquery:"expense_group"`

	Shared       bool     `bigquery:"shared"`
	SharedAmount *big.Rat `bigquery:"shared_amount"` // NULLABLE NUMERIC

	CreatedTS   time.Time              `bigquery:"created_ts"`
	ReviewedTS  bigquery.NullTimestamp `bigquery:"reviewed_ts"`
	PublishedTS time.Time              `bigquery:"published_ts"`
}

// RowInserter is satisfied by *bigquery.Inserter.
type RowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// WarehouseConfig names the destination table.
type WarehouseConfig struct {
	Project string
	Dataset string
	Table   string
}

// WarehouseSink appends reviewed transactions to a BigQuery table. Rows
// already present for the statement are skipped, so republishing after a
// failed attempt does not duplicate them.
type WarehouseSink struct {
	client   *bigquery.Client
	inserter RowInserter
	existing func(ctx context.Context, statementID string) (map[string]bool, error)
	index    Indexer
	now      func() time.Time
}

// NewWarehouseSink connects to BigQuery with Application Default Credentials.
func NewWarehouseSink(ctx context.Context, cfg WarehouseConfig, index Indexer) (*WarehouseSink, error) {
	client, err := bigquery.NewClient(ctx, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("NewWarehouseSink: bigquery client: %w", err)
	}
	return NewWarehouseSinkWithClient(client, cfg, index), nil
}

// NewWarehouseSinkWithClient uses the provided BigQuery client.
func NewWarehouseSinkWithClient(client *bigquery.Client, cfg WarehouseConfig, index Indexer) *WarehouseSink {
	s := &WarehouseSink{
		client:   client,
		inserter: client.DatasetInProject(cfg.Project, cfg.Dataset).Table(cfg.Table).Inserter(),
		index:    index,
		now:      time.Now,
	}
	s.existing = func(ctx context.Context, statementID string) (map[string]bool, error) {
		return publishedIDs(ctx, client, cfg, statementID)
	}
	return s
}

func (s *WarehouseSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *WarehouseSink) Name() string { return "warehouse" }

func (s *WarehouseSink) Publish(ctx context.Context, st *domain.Statement, txs []*domain.Transaction) error {
	ix, err := s.index.Index(ctx)
	if err != nil {
		return err
	}
	seen, err := s.existing(ctx, st.ID)
	if err != nil {
		return err
	}

	publishedAt := s.now().UTC()
	rows := make([]*WarehouseRow, 0, len(txs))
	for _, tx := range txs {
		if seen[tx.ID] {
			continue
		}
		rows = append(rows, ToWarehouseRow(st, tx, ix, publishedAt))
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertWarehouseRows: inserting rows: %w", err)
	}
	return nil
}

// ToWarehouseRow converts a transaction into its warehouse row.
func ToWarehouseRow(st *domain.Statement, tx *domain.Transaction, ix *catalog.Index, publishedAt time.Time) *WarehouseRow {
	row := &WarehouseRow{
		TransactionID:   tx.ID,
		StatementID:     st.ID,
		BankID:          st.BankID,
		TransactionDate: civil.DateOf(tx.CreatedAt.UTC()),
		Amount:          decimal.NewFromInt(tx.Amount).Rat(),
		Currency:        tx.Currency,
		Description:     tx.Description,
		Location:        nullString(tx.Location),
		SenderKey:       nullString(ix.Key(tx.SenderID)),
		RecipientKey:    nullString(ix.Key(tx.RecipientID)),
		ExpenseGroup:    nullString(expenseGroup(ix, tx.RecipientID)),
		Shared:          tx.Shared,
		CreatedTS:       tx.CreatedAt.UTC(),
		PublishedTS:     publishedAt,
	}
	if tx.SharedAmount != nil {
		row.SharedAmount = decimal.NewFromInt(*tx.SharedAmount).Rat()
	}
	if tx.ReviewedAt != nil {
		row.ReviewedTS = bigquery.NullTimestamp{Timestamp: tx.ReviewedAt.UTC(), Valid: true}
	}
	return row
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// publishedIDs returns the transaction ids already in the table for a statement.
func publishedIDs(ctx context.Context, client *bigquery.Client, cfg WarehouseConfig, statementID string) (map[string]bool, error) {
	q := client.Query(fmt.Sprintf(
		"SELECT transaction_id FROM `%s.%s.%s` WHERE statement_id = @statement_id",
		cfg.Project, cfg.Dataset, cfg.Table,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: statementID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryPublished: query read: %w", err)
	}

	ids := map[string]bool{}
	for {
		var r struct {
			TransactionID string `bigquery:"transaction_id"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryPublished: iter next: %w", err)
		}
		ids[r.TransactionID] = true
	}
	return ids, nil
}
