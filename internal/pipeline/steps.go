package pipeline

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/extraction"
	"github.com/dvloznov/spendbook/internal/gcs"
	"github.com/dvloznov/spendbook/internal/logger"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Statement  *domain.Statement
	Bank       *domain.Entity
	Index      *catalog.Index
	Credential string
	Document   *extraction.Document
	Extractor  extraction.Extractor
	FileID     string
	Payload    *extraction.Payload
	Created    []*domain.Transaction

	progress ProgressFunc
}

func (s *PipelineState) report(p float64) {
	if s.progress != nil {
		s.progress(p)
	}
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		log.Debug().Int("step", i+1).Str("name", step.Name()).Msg("Running pipeline step")
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// resolveCredentialStep loads the extraction credential and connects the
// provider. A missing credential fails before any network call.
type resolveCredentialStep struct {
	credentials CredentialStore
	name        string
	provider    extraction.Provider
}

func (s *resolveCredentialStep) Name() string { return "resolve-credential" }

func (s *resolveCredentialStep) Execute(ctx context.Context, state *PipelineState) error {
	if strings.TrimSpace(state.Credential) == "" && s.credentials != nil {
		v, ok, err := s.credentials.Get(ctx, s.name)
		if err != nil {
			return fmt.Errorf("%w: read credential %s: %v", domain.ErrAuth, s.name, err)
		}
		if ok {
			state.Credential = v
		}
	}
	if strings.TrimSpace(state.Credential) == "" {
		return fmt.Errorf("%w: credential %q is not set", domain.ErrAuth, s.name)
	}
	ex, err := s.provider.Connect(ctx, state.Credential)
	if err != nil {
		return err
	}
	state.Extractor = ex
	return nil
}

// loadDocumentStep reads the source document unless one was supplied or a
// previous upload can be reused.
type loadDocumentStep struct {
	docs gcs.DocumentStore
}

func (s *loadDocumentStep) Name() string { return "load-document" }

func (s *loadDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Document != nil || state.Statement.ExternalFileID != "" {
		return nil
	}
	src := state.Statement.SourceURI
	if src == "" {
		return fmt.Errorf("%w: statement %s has no source document", domain.ErrValidation, state.Statement.ID)
	}

	if !gcs.IsURI(src) {
		doc, err := ReadDocument(src)
		if err != nil {
			return err
		}
		state.Document = doc
		return nil
	}
	if s.docs == nil {
		return fmt.Errorf("%w: no document store configured for %s", domain.ErrValidation, src)
	}
	if err := extraction.CheckCanceled(ctx); err != nil {
		return err
	}
	data, err := s.docs.Fetch(ctx, src)
	if err != nil {
		if cerr := extraction.CheckCanceled(ctx); cerr != nil {
			return cerr
		}
		return fmt.Errorf("%w: fetch %s: %v", domain.ErrNetwork, src, err)
	}
	state.Document = newDocument(gcs.Filename(src), data)
	return nil
}

// ReadDocument loads a local statement file.
func ReadDocument(path string) (*extraction.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrValidation, path, err)
	}
	return newDocument(filepath.Base(path), data), nil
}

func newDocument(name string, data []byte) *extraction.Document {
	return &extraction.Document{
		Name:     name,
		MIMEType: mimeType(name),
		Data:     data,
	}
}

func mimeType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/pdf"
}

// uploadStep sends the document and persists the returned file id at once,
// so a later failure still leaves it reusable.
type uploadStep struct {
	lifecycle Lifecycle
}

func (s *uploadStep) Name() string { return "upload" }

func (s *uploadStep) Execute(ctx context.Context, state *PipelineState) error {
	if id := state.Statement.ExternalFileID; id != "" && state.Document == nil {
		log := logger.FromContext(ctx)
		log.Info().
			Str("statement_id", state.Statement.ID).
			Str("file_id", id).
			Msg("Reusing uploaded file")
		state.FileID = id
		state.report(0.25)
		return nil
	}

	fileID, err := state.Extractor.Upload(ctx, *state.Document)
	if err != nil {
		return err
	}
	if err := s.lifecycle.SetExternalFileID(context.WithoutCancel(ctx), state.Statement.ID, fileID); err != nil {
		return fmt.Errorf("persist file id: %w", err)
	}
	state.Statement.ExternalFileID = fileID
	state.FileID = fileID
	state.report(0.25)
	return nil
}

type extractStep struct{}

func (s *extractStep) Name() string { return "extract" }

func (s *extractStep) Execute(ctx context.Context, state *PipelineState) error {
	prompt := extraction.BuildPrompt(state.Index.All(), state.Bank.Prompt)
	payload, err := state.Extractor.Extract(ctx, state.FileID, prompt)
	if err != nil {
		return err
	}
	state.Payload = payload
	state.report(0.5)

	log := logger.FromContext(ctx)
	log.Info().
		Str("statement_id", state.Statement.ID).
		Str("strategy", state.Extractor.Name()).
		Int("records", len(payload.Transactions)).
		Msg("Extraction finished")
	return nil
}

// materializeStep writes one transaction per raw record, sequentially, so
// progress stays monotonic.
type materializeStep struct {
	creator TransactionCreator
	now     func() time.Time
}

func (s *materializeStep) Name() string { return "materialize" }

func (s *materializeStep) Execute(ctx context.Context, state *PipelineState) error {
	raws := state.Payload.Transactions
	if len(raws) == 0 {
		state.report(1)
		return nil
	}
	for i, raw := range raws {
		in := Materialize(raw, state.Statement.ID, state.Bank, state.Index, s.now())
		tx, err := s.creator.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		state.Created = append(state.Created, tx)
		state.report(0.5 + 0.5*float64(i+1)/float64(len(raws)))
	}
	return nil
}

type markProcessedStep struct {
	lifecycle Lifecycle
}

func (s *markProcessedStep) Name() string { return "mark-processed" }

func (s *markProcessedStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.lifecycle.MarkProcessed(ctx, state.Statement.ID)
}
