package ai

import (
	"fmt"

	"github.com/kiranshivaraju/vulnhunter/internal/ai/ollama"
	"github.com/kiranshivaraju/vulnhunter/internal/ai/openai"
	"github.com/kiranshivaraju/vulnhunter/internal/ai/vllm"
	"github.com/kiranshivaraju/vulnhunter/internal/config"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// NewProvider constructs the diagnosis provider selected by config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.DiagnosisProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, cfg.MaxTokens), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM, cfg.MaxTokens), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai", cfg.Provider)
	}
}
