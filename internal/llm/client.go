// Package llm talks to the external text model that categorizes
// transactions the rule matcher could not.
package llm

import (
	"context"
	"fmt"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/service"
)

// Client completes a prompt against the external model.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds client configuration.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewClient creates a classifier client based on the provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
}

// NewRetryableClient wraps a client with retry on transient failures.
func NewRetryableClient(client Client, opts service.RetryOptions) Client {
	return &retryableClient{client: client, opts: opts}
}

type retryableClient struct {
	client Client
	opts   service.RetryOptions
}

func (c *retryableClient) Complete(ctx context.Context, prompt string) (string, error) {
	var response string
	err := common.WithRetry(ctx, func() error {
		var err error
		response, err = c.client.Complete(ctx, prompt)
		return err
	}, c.opts)
	return response, err
}
