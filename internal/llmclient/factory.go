package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/formscout/formscout/internal/config"
)

// NewClient is a factory function that creates a Client based on the
// configured provider.
func NewClient(cfg config.ClassifierConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}
