package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/spendbook/internal/domain"
)

// DefaultGeminiModel is the model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	BaseURL      string
	Model        string
	PollInterval time.Duration
}

// GeminiProvider extracts statements with the Gemini Files and
// GenerateContent APIs.
type GeminiProvider struct {
	cfg GeminiConfig
	log zerolog.Logger
}

// NewGeminiProvider creates the provider.
func NewGeminiProvider(cfg GeminiConfig, log zerolog.Logger) *GeminiProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &GeminiProvider{cfg: cfg, log: log}
}

// Connect creates a genai client for credential.
func (p *GeminiProvider) Connect(ctx context.Context, credential string) (Extractor, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: gemini API key is empty", domain.ErrAuth)
	}
	if err := CheckCanceled(ctx); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      credential,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: p.cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create genai client: %v", domain.ErrNetwork, err)
	}
	return &geminiSession{client: client, cfg: p.cfg, log: p.log}, nil
}

type geminiSession struct {
	client *genai.Client
	cfg    GeminiConfig
	log    zerolog.Logger
}

func (g *geminiSession) Name() string { return "gemini" }

// Upload stores the document with the Files API and returns the file name.
func (g *geminiSession) Upload(ctx context.Context, doc Document) (string, error) {
	if err := CheckCanceled(ctx); err != nil {
		return "", err
	}
	mimeType := doc.MIMEType
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	f, err := g.client.Files.Upload(ctx, bytes.NewReader(doc.Data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: doc.Name,
	})
	if err != nil {
		return "", g.remoteErr(ctx, "upload file", err)
	}
	g.log.Debug().Str("file", f.Name).Msg("Uploaded statement file to Gemini")
	return f.Name, nil
}

// Extract waits for the file to become active and asks the model for the
// transactions object.
func (g *geminiSession) Extract(ctx context.Context, fileID, prompt string) (*Payload, error) {
	file, err := g.activeFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if err := CheckCanceled(ctx); err != nil {
		return nil, err
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, g.remoteErr(ctx, "generate content", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty response from model", domain.ErrParse)
	}
	return ParsePayload(text)
}

func (g *geminiSession) activeFile(ctx context.Context, name string) (*genai.File, error) {
	for {
		if err := CheckCanceled(ctx); err != nil {
			return nil, err
		}
		f, err := g.client.Files.Get(ctx, name, nil)
		if err != nil {
			return nil, g.remoteErr(ctx, "get file", err)
		}
		switch f.State {
		case genai.FileStateActive, "":
			return f, nil
		case genai.FileStateProcessing:
		default:
			return nil, fmt.Errorf("%w: file %s is %s", domain.ErrNetwork, name, f.State)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for file %s: %v", domain.ErrCanceled, name, ctx.Err())
		case <-time.After(g.cfg.PollInterval):
		}
	}
}

func (g *geminiSession) remoteErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrCanceled, op, ctx.Err())
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrNetwork, op, err)
}
