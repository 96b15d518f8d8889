package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"

	"github.com/dvloznov/spendbook/internal/domain"
)

// ResponsesStrategy is the two-call fallback: create a response carrying the
// prompt and the file, then fetch it once if it was not yet complete.
type ResponsesStrategy struct {
	client *Client
	model  string
	wait   time.Duration
}

// NewResponsesStrategy creates the fallback strategy. wait is the pause
// before the single follow-up fetch.
func NewResponsesStrategy(c *Client, model string, wait time.Duration) *ResponsesStrategy {
	return &ResponsesStrategy{client: c, model: model, wait: wait}
}

func (s *ResponsesStrategy) Name() string { return "responses" }

func (s *ResponsesStrategy) Extract(ctx context.Context, fileID, prompt string) (*Payload, error) {
	if err := CheckCanceled(ctx); err != nil {
		return nil, err
	}
	api := s.client.api

	content := responses.ResponseInputMessageContentListParam{
		responses.ResponseInputContentParamOfInputText(prompt),
		{OfInputFile: &responses.ResponseInputFileParam{FileID: openai.String(fileID)}},
	}
	resp, err := api.Responses.New(ctx, responses.ResponseNewParams{
		Model: s.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser),
			},
		},
	})
	if err != nil {
		return nil, remoteErr(ctx, "create response", err)
	}

	if resp.Status != "" && resp.Status != responses.ResponseStatusCompleted {
		if s.wait > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: waiting for response %s: %v", domain.ErrCanceled, resp.ID, ctx.Err())
			case <-time.After(s.wait):
			}
		}
		resp, err = api.Responses.Get(ctx, resp.ID, responses.ResponseGetParams{})
		if err != nil {
			return nil, remoteErr(ctx, "fetch response", err)
		}
		if resp.Status != responses.ResponseStatusCompleted {
			return nil, fmt.Errorf("%w: response %s ended with status %s", domain.ErrNetwork, resp.ID, resp.Status)
		}
	}

	return ParsePayload(resp.OutputText())
}
