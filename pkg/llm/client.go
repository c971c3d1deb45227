package llm

import (
	"fmt"

	"github.com/mazebench/mazebench/pkg/models"
)

// NewChatClient builds the transport for a provider family. The managed
// provider requires an API key; the local provider requires a base URL
// and sends its key only when one is configured.
func NewChatClient(provider models.Provider, cfg Config) (ChatClient, error) {
	switch provider {
	case models.ProviderLocalChat:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("local-chat requires a base URL")
		}
		return NewLocalClient(cfg), nil
	case models.ProviderManagedAgent:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("managed-agent requires an API key")
		}
		return NewManagedClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
