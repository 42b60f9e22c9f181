package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/vulnhunter/internal/ai/prompt"
	"github.com/kiranshivaraju/vulnhunter/internal/config"
	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// Provider implements models.DiagnosisProvider using Ollama's native chat API.
type Provider struct {
	cfg       config.OllamaConfig
	maxTokens int
	client    *http.Client
}

func NewProvider(cfg config.OllamaConfig, maxTokens int) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, maxTokens: maxTokens, client: http.DefaultClient}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Format   string    `json:"format"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) Diagnose(ctx context.Context, input string) (string, error) {
	raw, err := p.chat(ctx, p.cfg.Model, prompt.Diagnose, input)
	if err != nil {
		return "", fmt.Errorf("ollama diagnose: %w", err)
	}
	return raw, nil
}

func (p *Provider) Analyze(ctx context.Context, input string) ([]models.Diagnostic, error) {
	raw, err := p.chat(ctx, p.cfg.ReviewModel, prompt.Analyze, input)
	if err != nil {
		return nil, fmt.Errorf("ollama analyze: %w", err)
	}
	diags, err := prompt.ParseDiagnostics(raw)
	if err != nil {
		return nil, fmt.Errorf("ollama analyze: %w", err)
	}
	return diags, nil
}

func (p *Provider) chat(ctx context.Context, model, system, user string) (string, error) {
	payload := chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Format:  "json",
		Stream:  false,
		Options: options{Temperature: 0, TopP: 1, NumPredict: p.maxTokens},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", models.ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", models.ErrProviderUnavailable, resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %v", models.ErrInvalidResponse, err)
	}
	if out.Message.Content == "" {
		return "", fmt.Errorf("%w: empty message", models.ErrInvalidResponse)
	}
	return out.Message.Content, nil
}

var _ models.DiagnosisProvider = (*Provider)(nil)
