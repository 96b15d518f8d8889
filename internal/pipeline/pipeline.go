// Package pipeline ingests a statement document: it uploads the file to the
// extraction service, extracts raw records and materializes them as
// transactions, reporting progress along the way.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/extraction"
	"github.com/dvloznov/spendbook/internal/gcs"
	"github.com/dvloznov/spendbook/internal/logger"
	"github.com/dvloznov/spendbook/internal/store"
	"github.com/dvloznov/spendbook/internal/transactions"
)

// ProgressFunc receives the completed fraction of an ingestion in [0,1].
type ProgressFunc func(fraction float64)

// CredentialStore looks up named secrets.
type CredentialStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
}

// Lifecycle is the subset of the statement service the pipeline drives.
type Lifecycle interface {
	Get(ctx context.Context, id string) (*domain.Statement, error)
	SetExternalFileID(ctx context.Context, id, fileID string) error
	MarkProcessed(ctx context.Context, id string) error
	MarkError(ctx context.Context, id string) error
}

// TransactionCreator stores materialized transactions.
type TransactionCreator interface {
	Create(ctx context.Context, in transactions.CreateInput) (*domain.Transaction, error)
}

// Deps are the collaborators of an Ingester.
type Deps struct {
	Store          store.Store
	Lifecycle      Lifecycle
	Transactions   TransactionCreator
	Provider       extraction.Provider
	Credentials    CredentialStore
	CredentialName string
	Documents      gcs.DocumentStore // optional, for gs:// sources
}

// Ingester runs the ingestion pipeline for one statement at a time per call.
// Calls for different statements may run concurrently.
type Ingester struct {
	deps Deps
	now  func() time.Time
}

// NewIngester creates an Ingester.
func NewIngester(deps Deps) *Ingester {
	if deps.CredentialName == "" {
		deps.CredentialName = "openai-api-key"
	}
	return &Ingester{deps: deps, now: time.Now}
}

// Request describes one ingestion.
type Request struct {
	StatementID string
	// Document overrides the statement's source URI. When nil and the
	// statement already has an external file id, the upload is skipped.
	Document *extraction.Document
	// Credential overrides the credential store lookup.
	Credential string
	Progress   ProgressFunc
}

// Ingest runs the pipeline. Any failure marks the statement as error and is
// returned wrapped; cancellation surfaces as domain.ErrCanceled.
func (in *Ingester) Ingest(ctx context.Context, req Request) (*domain.Statement, error) {
	log := logger.FromContext(ctx).With().Str("statement_id", req.StatementID).Logger()
	ctx = logger.WithContext(ctx, log)

	st, err := in.deps.Lifecycle.Get(ctx, req.StatementID)
	if err != nil {
		return nil, err
	}
	switch st.Status {
	case domain.StatusNew, domain.StatusError:
	default:
		return nil, fmt.Errorf("%w: statement %s is %s, reprocess it first", domain.ErrConflict, st.ID, st.Status)
	}

	state := &PipelineState{
		Statement:  st,
		Credential: req.Credential,
		Document:   req.Document,
		progress:   req.Progress,
	}
	state.report(0)

	if err := in.prepare(ctx, state); err != nil {
		return nil, in.fail(ctx, state, err)
	}

	p := NewPipeline(
		&resolveCredentialStep{credentials: in.deps.Credentials, name: in.deps.CredentialName, provider: in.deps.Provider},
		&loadDocumentStep{docs: in.deps.Documents},
		&uploadStep{lifecycle: in.deps.Lifecycle},
		&extractStep{},
		&materializeStep{creator: in.deps.Transactions, now: in.now},
		&markProcessedStep{lifecycle: in.deps.Lifecycle},
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, in.fail(ctx, state, err)
	}

	log.Info().Int("transactions", len(state.Created)).Msg("Statement ingested")
	return in.deps.Lifecycle.Get(ctx, st.ID)
}

// prepare loads the bank entity and the catalog index used for the prompt
// and category resolution.
func (in *Ingester) prepare(ctx context.Context, state *PipelineState) error {
	entities, err := in.deps.Store.ListEntities(ctx, store.EntityFilter{})
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	state.Index = catalog.NewIndex(entities)

	bank, ok := state.Index.Get(state.Statement.BankID)
	if !ok {
		return fmt.Errorf("%w: bank %s of statement %s", domain.ErrNotFound, state.Statement.BankID, state.Statement.ID)
	}
	state.Bank = bank
	return nil
}

// fail marks the statement as error on a context that survives cancellation,
// drops any transactions written by this run and returns err.
func (in *Ingester) fail(ctx context.Context, state *PipelineState, err error) error {
	log := logger.FromContext(ctx)
	detached := context.WithoutCancel(ctx)

	if len(state.Created) > 0 {
		if _, derr := in.deps.Store.DeleteTransactions(detached, state.Statement.ID); derr != nil {
			log.Error().Err(derr).Msg("Failed to drop partial transactions")
		}
	}
	if merr := in.deps.Lifecycle.MarkError(detached, state.Statement.ID); merr != nil {
		log.Error().Err(merr).Msg("Failed to mark statement as error")
	}

	log.Error().Err(err).Msg("Statement ingestion failed")
	return fmt.Errorf("ingest statement %s: %w", state.Statement.ID, err)
}
