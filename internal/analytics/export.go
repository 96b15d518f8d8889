package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
)

// CSVHeader is the first row of every export.
var CSVHeader = []string{"id", "date", "description", "amount", "sender", "recipient"}

// ExportCSV writes one row per reviewed transaction in the window, oldest
// first, and returns the number of data rows.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, startMs, endMs int64) (int, error) {
	ix, err := s.index(ctx)
	if err != nil {
		return 0, err
	}
	txs, err := s.reviewed(ctx, startMs, endMs)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(w, ix, txs); err != nil {
		return 0, err
	}
	return len(txs), nil
}

// WriteCSV writes the header and one row per transaction. Sender and
// recipient are written as stable entity keys (see catalog.Index.Key).
func WriteCSV(w io.Writer, ix *catalog.Index, txs []*domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	for _, tx := range txs {
		row := []string{
			tx.ID,
			tx.CreatedAt.UTC().Format(time.RFC3339),
			tx.Description,
			strconv.FormatInt(tx.Amount, 10),
			ix.Key(tx.SenderID),
			ix.Key(tx.RecipientID),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}
