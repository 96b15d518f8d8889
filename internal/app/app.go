// Package app assembles the spendbook services from configuration. Both the
// API server and the CLI build one App per process.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spendbook/internal/analytics"
	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/config"
	"github.com/dvloznov/spendbook/internal/extraction"
	"github.com/dvloznov/spendbook/internal/gcs"
	"github.com/dvloznov/spendbook/internal/jobs"
	"github.com/dvloznov/spendbook/internal/pipeline"
	"github.com/dvloznov/spendbook/internal/publish"
	"github.com/dvloznov/spendbook/internal/secrets"
	"github.com/dvloznov/spendbook/internal/statements"
	"github.com/dvloznov/spendbook/internal/store"
	"github.com/dvloznov/spendbook/internal/store/memory"
	"github.com/dvloznov/spendbook/internal/store/sqlite"
	"github.com/dvloznov/spendbook/internal/transactions"
)

// App holds the wired services.
type App struct {
	Config config.Config
	Log    zerolog.Logger

	Store      *store.Handle
	Secrets    secrets.Store
	SecretFile *secrets.File

	Catalog      *catalog.Service
	Statements   *statements.Service
	Transactions *transactions.Service
	Analytics    *analytics.Service
	Ingester     *pipeline.Ingester

	// Documents and Sink are nil when no bucket or sink is configured.
	Documents gcs.DocumentStore
	Sink      statements.Sink

	closers []func() error
}

// Opener returns the store opener selected by cfg.
func Opener(cfg config.StoreConfig) (store.Opener, error) {
	switch cfg.Driver {
	case "memory":
		return memory.Opener(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return sqlite.Opener(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// New opens the store and builds every service. Optional integrations
// (bucket, warehouse, notion) are only created when configured.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	open, err := Opener(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.Store = store.NewHandle(open)
	if err := a.Store.Open(ctx); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	a.SecretFile, err = secrets.NewFile(cfg.Secrets.Path, cfg.Secrets.Passphrase)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open secrets: %w", err)
	}
	a.Secrets = secrets.Chain{secrets.Env{Prefix: "SPENDBOOK"}, a.SecretFile}

	a.Catalog = catalog.NewService(a.Store)
	a.Statements = statements.NewService(a.Store)
	a.Transactions = transactions.NewService(a.Store, a.Statements)
	a.Analytics = analytics.NewService(a.Store)

	if cfg.GCS.Bucket != "" {
		docs, err := gcs.New(ctx, cfg.GCS.Bucket)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Documents = docs
		a.closers = append(a.closers, docs.Close)
	} else {
		log.Debug().Msg("No GCS bucket configured, gs:// sources and uploads are disabled")
	}

	sink, err := a.buildSink(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Sink = sink

	a.Ingester = pipeline.NewIngester(pipeline.Deps{
		Store:          a.Store,
		Lifecycle:      a.Statements,
		Transactions:   a.Transactions,
		Provider:       a.provider(),
		Credentials:    a.Secrets,
		CredentialName: cfg.Extraction.CredentialName,
		Documents:      a.Documents,
	})
	return a, nil
}

func (a *App) provider() extraction.Provider {
	ec := a.Config.Extraction
	if ec.Provider == "gemini" {
		return extraction.NewGeminiProvider(extraction.GeminiConfig{
			BaseURL:      ec.BaseURL,
			Model:        ec.Model,
			PollInterval: ec.PollInterval,
		}, a.Log)
	}
	return extraction.NewOpenAIProvider(extraction.OpenAIConfig{
		BaseURL:           ec.BaseURL,
		Model:             ec.Model,
		AssistantName:     ec.AssistantName,
		PollInterval:      ec.PollInterval,
		DisableAssistants: ec.DisableAssistants,
	}, a.SecretFile, a.Log)
}

func (a *App) buildSink(ctx context.Context) (statements.Sink, error) {
	var sinks publish.Multi

	if wc := a.Config.Warehouse; wc.Project != "" {
		wh, err := publish.NewWarehouseSink(ctx, publish.WarehouseConfig{
			Project: wc.Project,
			Dataset: wc.Dataset,
			Table:   wc.Table,
		}, a.Catalog)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, wh.Close)
		sinks = append(sinks, wh)
	}

	if nc := a.Config.Notion; nc.DatabaseID != "" {
		token, ok, err := a.Secrets.Get(ctx, nc.TokenName)
		if err != nil {
			return nil, fmt.Errorf("notion token: %w", err)
		}
		if ok {
			sinks = append(sinks, &publish.NotionSink{
				Client:     publish.NewNotionClient(token),
				DatabaseID: nc.DatabaseID,
				Index:      a.Catalog,
			})
		} else {
			a.Log.Warn().Str("secret", nc.TokenName).Msg("Notion database configured but token is missing, skipping sink")
		}
	}

	if dir := a.Config.Publish.CSVDir; dir != "" {
		sinks = append(sinks, &publish.CSVSink{Dir: dir, Index: a.Catalog})
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// IngestHandler runs queued ingest jobs through the pipeline.
func (a *App) IngestHandler() jobs.JobHandler {
	return func(ctx context.Context, job *jobs.IngestJob, report jobs.ProgressFunc) error {
		st, err := a.Ingester.Ingest(ctx, pipeline.Request{
			StatementID: job.StatementID,
			Progress:    pipeline.ProgressFunc(report),
		})
		if err != nil {
			return err
		}
		a.Log.Info().
			Str("job_id", job.JobID).
			Str("statement_id", st.ID).
			Str("status", string(st.Status)).
			Msg("Ingest job finished")
		return nil
	}
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
