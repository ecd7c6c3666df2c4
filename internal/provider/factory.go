package provider

import (
	"fmt"
	"log/slog"

	"talkbot/internal/config"
	"talkbot/internal/domain"
)

// Build constructs one backend per enabled config entry, keyed by the
// config name.
func Build(cfgs map[string]config.BackendConfig, logger *slog.Logger) (map[string]domain.Backend, error) {
	backends := make(map[string]domain.Backend)
	for name, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		switch cfg.Kind {
		case "ollama", "":
			backends[name] = NewOllama(OllamaConfig{
				APIBase:      cfg.APIBase,
				DefaultModel: cfg.Model,
				Logger:       logger.With("backend", name),
			})
		case "openai":
			backends[name] = NewOpenAI(OpenAIConfig{
				APIBase:      cfg.APIBase,
				APIKey:       cfg.APIKey,
				DefaultModel: cfg.Model,
				Logger:       logger.With("backend", name),
			})
		default:
			return nil, fmt.Errorf("backend %q: unknown kind %q", name, cfg.Kind)
		}
		logger.Info("configured backend", "name", name, "kind", cfg.Kind, "model", cfg.Model)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no backends enabled")
	}
	return backends, nil
}
