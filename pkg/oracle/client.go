// Package oracle wraps the external text-extraction service behind a small
// client interface. The service is treated as a black box: a prompt goes in,
// text comes out, and failures are classified as rate-limit or transient so
// the caller's retry policy can pick the right backoff.
package oracle

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/review-insights/internal/resilience"
)

// Client defines the oracle operations used by the extraction pipeline.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single completion request.
type Request struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	Prompt      string
}

// Response is the oracle's reply.
type Response struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage tracks token consumption for one or more calls.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Log emits token usage with structured fields.
func (u TokenUsage) Log(model, phase string) {
	zap.L().Info("oracle usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
	)
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates an oracle client backed by the SDK.
func NewClient(apiKey string) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *sdkClient) Complete(ctx context.Context, req Request) (*Response, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   req.MaxTokens,
		Temperature: sdk.Float(req.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(eris.Wrap(err, "oracle: complete"))
	}

	return fromSDKMessage(msg), nil
}

// classifyError maps SDK failures onto the retry taxonomy: 429/529 become
// rate-limit errors, 5xx and deadline expiry become transient, everything
// else passes through untouched.
func classifyError(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case resilience.IsRateLimitHTTPStatus(apierr.StatusCode):
			return resilience.NewRateLimitError(err)
		case resilience.IsTransientHTTPStatus(apierr.StatusCode):
			return resilience.NewTransientError(err, apierr.StatusCode)
		default:
			return err
		}
	}

	// A per-attempt timeout counts as transient, not a separate error class.
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.NewTransientError(err, 0)
	}

	return err
}

func fromSDKMessage(msg *sdk.Message) *Response {
	var text string
	for _, b := range msg.Content {
		if b.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += b.Text
		}
	}

	return &Response{
		Text: text,
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
