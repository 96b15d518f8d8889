package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/dvloznov/spendbook/internal/domain"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client wraps the OpenAI SDK client shared by both strategies.
type Client struct {
	api openai.Client
	log zerolog.Logger
}

type clientConfig struct {
	http *http.Client
	log  zerolog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*clientConfig)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *clientConfig) { c.log = log }
}

// NewClient creates a client for baseURL authenticated with apiKey. The SDK's
// automatic retries are disabled; a failed call surfaces to the caller.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg := clientConfig{
		http: &http.Client{Timeout: 2 * time.Minute},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		api: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(cfg.http),
			option.WithMaxRetries(0),
		),
		log: cfg.log,
	}
}

// Upload posts the document to /files with purpose "assistants".
func (c *Client) Upload(ctx context.Context, doc Document) (string, error) {
	if err := CheckCanceled(ctx); err != nil {
		return "", err
	}

	name := doc.Name
	if name == "" {
		name = "statement.pdf"
	}
	mimeType := doc.MIMEType
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	start := time.Now()
	f, err := c.api.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(doc.Data), name, mimeType),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return "", remoteErr(ctx, "upload", err)
	}
	if f.ID == "" {
		return "", fmt.Errorf("upload: %w: response has no file id", domain.ErrParse)
	}

	c.log.Debug().
		Str("file_id", f.ID).
		Int("bytes", len(doc.Data)).
		Dur("duration", time.Since(start)).
		Msg("Uploaded statement file")
	return f.ID, nil
}

// remoteErr maps an SDK error onto the domain error kinds. Authentication
// rejections become ErrAuth, everything else reaching the wire is ErrNetwork.
func remoteErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrCanceled, ctx.Err())
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind := domain.ErrNetwork
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			kind = domain.ErrAuth
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return fmt.Errorf("%s: %w: status %d: %s", op, kind, apiErr.StatusCode, msg)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrNetwork, err)
}

// isNotFound reports whether err is an API 404.
func isNotFound(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
