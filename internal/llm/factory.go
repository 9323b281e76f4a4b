package llm

import (
	"fmt"
	"strings"
)

// NewClient creates a model client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}
