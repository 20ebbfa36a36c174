package llm

import (
	"context"
	"fmt"

	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code, 0 for transport failures
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// FallbackClient tries Primary and answers from Fallback when it fails.
type FallbackClient struct {
	Primary  Client
	Fallback Client
	log      *logging.Logger
}

// NewFallbackClient wraps primary with a fallback.
func NewFallbackClient(primary, fallback Client, log *logging.Logger) *FallbackClient {
	return &FallbackClient{Primary: primary, Fallback: fallback, log: log.Sub("llm")}
}

// Complete calls Primary, then Fallback on error. Context cancellation is
// returned as is.
func (f *FallbackClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, err := f.Primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.log.Warn().Err(err).
		Str("primary", f.Primary.Name()).
		Str("fallback", f.Fallback.Name()).
		Msg("primary provider failed, using fallback")
	return f.Fallback.Complete(ctx, req)
}

// Name returns the primary provider name.
func (f *FallbackClient) Name() string { return f.Primary.Name() }

// FromConfig builds the configured client. The Ollama provider is wrapped so
// the canned answers take over when the model server is unreachable.
func FromConfig(cfg config.LLMConfig, log *logging.Logger) (Client, error) {
	switch cfg.Provider {
	case "", "canned":
		return NewCannedClient(nil), nil
	case "ollama":
		return NewFallbackClient(NewOllamaClient(cfg.Endpoint, cfg.Model), NewCannedClient(nil), log), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
