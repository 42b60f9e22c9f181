package openai

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/vulnhunter/internal/ai/chatcompletion"
	"github.com/kiranshivaraju/vulnhunter/internal/ai/prompt"
	"github.com/kiranshivaraju/vulnhunter/internal/config"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// Provider implements models.DiagnosisProvider against an OpenAI-compatible
// chat-completions API (OpenAI itself, Groq, ...).
type Provider struct {
	cfg    config.OpenAIConfig
	client *chatcompletion.Client
}

func NewProvider(cfg config.OpenAIConfig, maxTokens int) *Provider {
	return &Provider{
		cfg:    cfg,
		client: chatcompletion.New(cfg.BaseURL, cfg.APIKey, maxTokens),
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Diagnose(ctx context.Context, input string) (string, error) {
	raw, err := p.client.Complete(ctx, p.cfg.Model, prompt.Diagnose, input)
	if err != nil {
		return "", fmt.Errorf("openai diagnose: %w", err)
	}
	return raw, nil
}

func (p *Provider) Analyze(ctx context.Context, input string) ([]models.Diagnostic, error) {
	raw, err := p.client.Complete(ctx, p.cfg.ReviewModel, prompt.Analyze, input)
	if err != nil {
		return nil, fmt.Errorf("openai analyze: %w", err)
	}
	diags, err := prompt.ParseDiagnostics(raw)
	if err != nil {
		return nil, fmt.Errorf("openai analyze: %w", err)
	}
	return diags, nil
}

var _ models.DiagnosisProvider = (*Provider)(nil)
