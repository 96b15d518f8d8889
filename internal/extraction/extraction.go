// Package extraction turns an uploaded bank statement into raw transaction
// records through a remote text-extraction service.
package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendbook/internal/domain"
)

// ErrUnsupported is returned by a strategy that cannot run in the current
// configuration. Fallback treats it like any other primary failure.
var ErrUnsupported = errors.New("strategy unsupported")

// Document is a statement file to upload.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// RawTransaction is one record as returned by the extraction service.
// Amount accepts both JSON numbers and numeric strings.
type RawTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Location    string          `json:"location,omitempty"`
	IsShared    bool            `json:"isShared,omitempty"`
	Type        string          `json:"type,omitempty"`
}

// Payload is the transactions document every strategy yields.
type Payload struct {
	Transactions []RawTransaction `json:"transactions"`
}

// Uploader sends a document to the service and returns its file id.
type Uploader interface {
	Upload(ctx context.Context, doc Document) (string, error)
}

// Strategy extracts transactions from an uploaded file.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, fileID, prompt string) (*Payload, error)
}

// Extractor is a connected session with an extraction service.
type Extractor interface {
	Uploader
	Strategy
}

// Provider creates an Extractor authenticated with credential.
type Provider interface {
	Connect(ctx context.Context, credential string) (Extractor, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, credential string) (Extractor, error)

func (f ProviderFunc) Connect(ctx context.Context, credential string) (Extractor, error) {
	return f(ctx, credential)
}

// session pairs an uploader with the strategy used for extraction.
type session struct {
	Uploader
	Strategy
}

// NewExtractor combines an uploader and a strategy.
func NewExtractor(u Uploader, s Strategy) Extractor {
	return session{Uploader: u, Strategy: s}
}

// CheckCanceled returns a domain.ErrCanceled error when ctx is done.
func CheckCanceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCanceled, err)
	}
	return nil
}
