package generation

import (
	"context"
	"fmt"

	"boardroom/internal/config"
)

// NewBackend builds the configured provider. It returns ErrNotConfigured
// when the provider's API key environment variable is empty.
func NewBackend(ctx context.Context, cfg config.Generation) (Backend, error) {
	key := cfg.APIKey()
	switch cfg.Provider {
	case "gemini":
		return NewGemini(ctx, key, cfg.Model, cfg.ImageModel)
	case "openai":
		return NewOpenAI(key, cfg.Model, cfg.ImageModel)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
