package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/config"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/jobs"
	"github.com/dvloznov/spendbook/internal/publish"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		Store: config.StoreConfig{Driver: "memory"},
		Extraction: config.ExtractionConfig{
			Provider:       "openai",
			BaseURL:        "http://127.0.0.1:1",
			CredentialName: "openai-api-key",
			PollInterval:   time.Millisecond,
		},
		Notion:  config.NotionConfig{TokenName: "notion-token"},
		Secrets: config.SecretsConfig{Path: filepath.Join(dir, "keys.json"), Passphrase: "test"},
	}
}

func TestNewWithoutOptionalIntegrations(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Documents)
	assert.Nil(t, a.Sink)
	assert.NotNil(t, a.Ingester)
}

func TestSinkSelection(t *testing.T) {
	t.Run("csv only", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Publish.CSVDir = t.TempDir()
		a, err := New(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		defer a.Close()

		_, ok := a.Sink.(*publish.CSVSink)
		assert.True(t, ok)
	})

	t.Run("notion without token is skipped", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Notion.DatabaseID = "db"
		a, err := New(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		defer a.Close()

		assert.Nil(t, a.Sink)
	})

	t.Run("notion with token and csv", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Notion.DatabaseID = "db"
		cfg.Publish.CSVDir = t.TempDir()
		t.Setenv("SPENDBOOK_NOTION_TOKEN", "secret_x")
		a, err := New(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		defer a.Close()

		multi, ok := a.Sink.(publish.Multi)
		require.True(t, ok)
		assert.Equal(t, "notion+csv", multi.Name())
	})
}

func TestOpenerRejectsUnknownDriver(t *testing.T) {
	_, err := Opener(config.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)
}

func TestSQLiteOpenerCreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spendbook.db")
	_, err := Opener(config.StoreConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestIngestHandlerFailsWithoutCredential(t *testing.T) {
	t.Setenv("SPENDBOOK_OPENAI_API_KEY", "")
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	bank, err := a.Catalog.Create(ctx, catalog.EntityInput{Label: "Monzo", Category: domain.CategoryBank, Currency: "GBP"})
	require.NoError(t, err)
	pdf := filepath.Join(t.TempDir(), "s.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o600))
	st, err := a.Statements.Create(ctx, bank.ID, pdf)
	require.NoError(t, err)

	var progress []float64
	err = a.IngestHandler()(ctx, &jobs.IngestJob{JobID: "j", StatementID: st.ID}, func(f float64) {
		progress = append(progress, f)
	})
	require.ErrorIs(t, err, domain.ErrAuth)

	got, err := a.Statements.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, []float64{0}, progress)
}
