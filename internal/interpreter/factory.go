package interpreter

import (
	"errors"
	"fmt"
	"time"
)

// Providers accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderHTTP      = "http"
	ProviderNone      = "none"
)

// ErrUnknownProvider is returned for an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown interpreter provider")

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// New builds the configured interpreter. ProviderNone returns nil.
func New(cfg Config) (Interpreter, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropic(cfg.APIKey, cfg.Model), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Model), nil
	case ProviderHTTP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http interpreter: endpoint is required")
		}
		return NewHTTP(cfg.Endpoint, cfg.APIKey, cfg.Timeout), nil
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
