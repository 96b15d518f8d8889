package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"

	"github.com/dvloznov/spendbook/internal/domain"
)

// DescriptorStore persists the id of the reusable assistant between runs.
type DescriptorStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Put(ctx context.Context, name, value string) error
}

// AssistantsConfig configures AssistantsStrategy.
type AssistantsConfig struct {
	Model         string
	AssistantName string
	PollInterval  time.Duration
	// Disabled makes Extract return ErrUnsupported without any remote call.
	Disabled bool
}

// AssistantsStrategy is the multi-step flow: thread, reusable assistant,
// user message with the file attached, run polled to a terminal status,
// then the first assistant text block.
type AssistantsStrategy struct {
	client      *Client
	descriptors DescriptorStore
	cfg         AssistantsConfig
}

// NewAssistantsStrategy creates the rich strategy. descriptors may be nil, in
// which case an assistant is created for every extraction.
func NewAssistantsStrategy(c *Client, descriptors DescriptorStore, cfg AssistantsConfig) *AssistantsStrategy {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "spendbook-statement-parser"
	}
	return &AssistantsStrategy{client: c, descriptors: descriptors, cfg: cfg}
}

func (s *AssistantsStrategy) Name() string { return "assistants" }

// Extract runs the full assistants flow for fileID.
func (s *AssistantsStrategy) Extract(ctx context.Context, fileID, prompt string) (*Payload, error) {
	if s.cfg.Disabled {
		return nil, ErrUnsupported
	}
	if err := CheckCanceled(ctx); err != nil {
		return nil, err
	}
	api := s.client.api

	thread, err := api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return nil, remoteErr(ctx, "create thread", err)
	}

	assistantID, err := s.ensureAssistant(ctx)
	if err != nil {
		return nil, err
	}

	_, err = api.Beta.Threads.Messages.New(ctx, thread.ID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(prompt),
		},
		Attachments: []openai.BetaThreadMessageNewParamsAttachment{{
			FileID: openai.String(fileID),
			Tools: []openai.BetaThreadMessageNewParamsAttachmentToolUnion{{
				OfFileSearch: &openai.BetaThreadMessageNewParamsAttachmentToolFileSearch{},
			}},
		}},
	})
	if err != nil {
		return nil, remoteErr(ctx, "post message", err)
	}

	run, err := s.startRun(ctx, thread.ID, assistantID)
	if err != nil {
		return nil, err
	}

	run, err = s.poll(ctx, thread.ID, run)
	if err != nil {
		return nil, err
	}
	if run.Status != openai.RunStatusCompleted {
		reason := string(run.Status)
		if run.LastError.Message != "" {
			reason += ": " + run.LastError.Message
		}
		return nil, fmt.Errorf("%w: run %s ended with status %s", domain.ErrNetwork, run.ID, reason)
	}

	msgs, err := api.Beta.Threads.Messages.List(ctx, thread.ID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		RunID: openai.String(run.ID),
	})
	if err != nil {
		return nil, remoteErr(ctx, "list messages", err)
	}
	for _, m := range msgs.Data {
		if m.Role != openai.MessageRoleAssistant {
			continue
		}
		for _, c := range m.Content {
			if c.Type == "text" {
				return ParsePayload(c.Text.Value)
			}
		}
	}
	return nil, fmt.Errorf("%w: run %s produced no assistant text", domain.ErrParse, run.ID)
}

// startRun starts a run on the thread. A persisted assistant that the service
// no longer knows is dropped and recreated once.
func (s *AssistantsStrategy) startRun(ctx context.Context, threadID, assistantID string) (*openai.Run, error) {
	run, err := s.client.api.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err == nil {
		return run, nil
	}
	if !isNotFound(err) || ctx.Err() != nil {
		return nil, remoteErr(ctx, "start run", err)
	}

	s.client.log.Warn().Str("assistant_id", assistantID).Msg("Stored assistant is gone, recreating")
	if err := s.forgetAssistant(ctx); err != nil {
		return nil, err
	}
	assistantID, err = s.ensureAssistant(ctx)
	if err != nil {
		return nil, err
	}
	run, err = s.client.api.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return nil, remoteErr(ctx, "start run", err)
	}
	return run, nil
}

func (s *AssistantsStrategy) descriptorKey() string {
	return "assistant:" + s.cfg.AssistantName
}

// ensureAssistant returns the persisted assistant id, creating and persisting
// a new assistant when none is stored.
func (s *AssistantsStrategy) ensureAssistant(ctx context.Context) (string, error) {
	if s.descriptors != nil {
		id, ok, err := s.descriptors.Get(ctx, s.descriptorKey())
		if err != nil {
			return "", fmt.Errorf("load assistant descriptor: %w", err)
		}
		if ok && id != "" {
			return id, nil
		}
	}

	created, err := s.client.api.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Model:        s.cfg.Model,
		Name:         openai.String(s.cfg.AssistantName),
		Instructions: openai.String(SystemPrompt),
		Tools: []openai.AssistantToolUnionParam{{
			OfFileSearch: &openai.FileSearchToolParam{},
		}},
	})
	if err != nil {
		return "", remoteErr(ctx, "create assistant", err)
	}
	if s.descriptors != nil {
		if err := s.descriptors.Put(ctx, s.descriptorKey(), created.ID); err != nil {
			return "", fmt.Errorf("persist assistant descriptor: %w", err)
		}
	}
	log := s.client.log
	log.Info().Str("assistant_id", created.ID).Msg("Created extraction assistant")
	return created.ID, nil
}

func (s *AssistantsStrategy) forgetAssistant(ctx context.Context) error {
	if s.descriptors == nil {
		return nil
	}
	if err := s.descriptors.Put(ctx, s.descriptorKey(), ""); err != nil {
		return fmt.Errorf("clear assistant descriptor: %w", err)
	}
	return nil
}

func terminal(status openai.RunStatus) bool {
	switch status {
	case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		return false
	}
	return true
}

func (s *AssistantsStrategy) poll(ctx context.Context, threadID string, run *openai.Run) (*openai.Run, error) {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for !terminal(run.Status) {
		select {
		case <-ctx.Done():
			return run, fmt.Errorf("%w: polling run %s: %v", domain.ErrCanceled, run.ID, ctx.Err())
		case <-timer.C:
		}
		next, err := s.client.api.Beta.Threads.Runs.Get(ctx, threadID, run.ID)
		if err != nil {
			return run, remoteErr(ctx, "poll run", err)
		}
		run = next
		timer.Reset(s.cfg.PollInterval)
	}
	return run, nil
}

// Fallback runs Primary and, when it fails for any reason other than
// cancellation, runs Secondary with the same input.
type Fallback struct {
	Primary    Strategy
	Secondary  Strategy
	OnFallback func(primary string, err error)
}

func (f *Fallback) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

func (f *Fallback) Extract(ctx context.Context, fileID, prompt string) (*Payload, error) {
	p, err := f.Primary.Extract(ctx, fileID, prompt)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, domain.ErrCanceled) {
		return nil, err
	}
	if f.OnFallback != nil {
		f.OnFallback(f.Primary.Name(), err)
	}
	return f.Secondary.Extract(ctx, fileID, prompt)
}
