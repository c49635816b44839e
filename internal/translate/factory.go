package translate

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Provider names accepted by New.
const (
	ProviderGoogle = "google"
	ProviderLibre  = "libre"
	ProviderOpenAI = "openai"
)

// Opts holds configuration options for building a Translator.
type Opts struct {
	Provider string        // which provider to use (google, libre, openai)
	APIKey   string        // provider API key
	Endpoint string        // provider endpoint, for LibreTranslate deployments
	Timeout  time.Duration // per-call HTTP timeout where the provider supports it
}

// Option defines a configuration option for building a Translator.
type Option func(*Opts)

// WithProvider selects the translation provider.
func WithProvider(name string) Option {
	return func(o *Opts) { o.Provider = name }
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithEndpoint sets the provider endpoint URL (LibreTranslate only).
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// New builds a Translator from the provided options. The Google provider is
// the default.
func New(ctx context.Context, opts ...Option) (Translator, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderGoogle
	}
	slog.Debug("translate.New building provider", "provider", cfg.Provider, "endpoint_set", cfg.Endpoint != "", "api_key_set", cfg.APIKey != "")

	switch cfg.Provider {
	case ProviderGoogle:
		return NewGoogleClient(ctx, cfg.APIKey)
	case ProviderLibre:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("libre provider requires an endpoint URL")
		}
		return NewLibreClient(cfg.Endpoint, cfg.APIKey, cfg.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.Provider)
	}
}
