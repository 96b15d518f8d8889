package extraction

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spendbook/internal/domain"
)

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	BaseURL           string
	Model             string
	AssistantName     string
	PollInterval      time.Duration
	DisableAssistants bool
	HTTPClient        *http.Client
}

// OpenAIProvider connects the assistants strategy with the responses
// strategy as its fallback.
type OpenAIProvider struct {
	cfg         OpenAIConfig
	descriptors DescriptorStore
	log         zerolog.Logger
}

// NewOpenAIProvider creates the provider. descriptors persists the assistant id.
func NewOpenAIProvider(cfg OpenAIConfig, descriptors DescriptorStore, log zerolog.Logger) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAIProvider{cfg: cfg, descriptors: descriptors, log: log}
}

// Connect returns an Extractor authenticated with credential.
func (p *OpenAIProvider) Connect(ctx context.Context, credential string) (Extractor, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: extraction API key is empty", domain.ErrAuth)
	}

	opts := []ClientOption{WithLogger(p.log)}
	if p.cfg.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(p.cfg.HTTPClient))
	}
	client := NewClient(p.cfg.BaseURL, credential, opts...)

	strategy := &Fallback{
		Primary: NewAssistantsStrategy(client, p.descriptors, AssistantsConfig{
			Model:         p.cfg.Model,
			AssistantName: p.cfg.AssistantName,
			PollInterval:  p.cfg.PollInterval,
			Disabled:      p.cfg.DisableAssistants,
		}),
		Secondary: NewResponsesStrategy(client, p.cfg.Model, p.cfg.PollInterval),
		OnFallback: func(primary string, err error) {
			p.log.Warn().Err(err).Str("strategy", primary).Msg("Extraction strategy failed, falling back")
		},
	}
	return NewExtractor(client, strategy), nil
}
