package llms

import (
	"fmt"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/registry"
)

// Registry manages named Provider instances, one per entry in the
// config's llms map. Agents reference a provider by name (AgentDef.Provider).
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// CreateFromConfig builds and registers a provider for one llms config entry.
func (r *Registry) CreateFromConfig(name string, cfg *config.LLMProviderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("llm name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("llm config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config %q: %w", name, err)
	}

	var provider Provider
	var err error
	switch cfg.Type {
	case "openai":
		provider, err = NewOpenAIProvider(cfg)
	case "anthropic":
		provider, err = NewAnthropicProvider(cfg)
	case "gemini":
		provider, err = NewGeminiProvider(cfg)
	case "ollama":
		provider, err = NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider %q: %w", name, err)
	}
	if err := r.Register(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register llm provider %q: %w", name, err)
	}
	return provider, nil
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.BaseRegistry.Get(name)
	if !ok {
		return nil, fmt.Errorf("llm provider %q not found", name)
	}
	return p, nil
}
