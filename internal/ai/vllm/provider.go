package vllm

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/vulnhunter/internal/ai/chatcompletion"
	"github.com/kiranshivaraju/vulnhunter/internal/ai/prompt"
	"github.com/kiranshivaraju/vulnhunter/internal/config"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// Provider implements models.DiagnosisProvider using vLLM's OpenAI-compatible server.
type Provider struct {
	cfg    config.VLLMConfig
	client *chatcompletion.Client
}

func NewProvider(cfg config.VLLMConfig, maxTokens int) *Provider {
	return &Provider{
		cfg:    cfg,
		client: chatcompletion.New(strings.TrimRight(cfg.BaseURL, "/")+"/v1", "", maxTokens),
	}
}

func (p *Provider) Name() string { return "vllm" }

func (p *Provider) Diagnose(ctx context.Context, input string) (string, error) {
	raw, err := p.client.Complete(ctx, p.cfg.Model, prompt.Diagnose, input)
	if err != nil {
		return "", fmt.Errorf("vllm diagnose: %w", err)
	}
	return raw, nil
}

func (p *Provider) Analyze(ctx context.Context, input string) ([]models.Diagnostic, error) {
	raw, err := p.client.Complete(ctx, p.cfg.ReviewModel, prompt.Analyze, input)
	if err != nil {
		return nil, fmt.Errorf("vllm analyze: %w", err)
	}
	diags, err := prompt.ParseDiagnostics(raw)
	if err != nil {
		return nil, fmt.Errorf("vllm analyze: %w", err)
	}
	return diags, nil
}

var _ models.DiagnosisProvider = (*Provider)(nil)
