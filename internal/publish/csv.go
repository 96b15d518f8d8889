package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/spendbook/internal/analytics"
	"github.com/dvloznov/spendbook/internal/domain"
)

// CSVSink writes each published statement to <Dir>/<statement id>.csv in
// the export format.
type CSVSink struct {
	Dir   string
	Index Indexer
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Publish(ctx context.Context, st *domain.Statement, txs []*domain.Transaction) error {
	ix, err := s.Index.Index(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}

	path := filepath.Join(s.Dir, st.ID+".csv")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	if err := analytics.WriteCSV(f, ix, txs); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	return os.Rename(tmp, path)
}
