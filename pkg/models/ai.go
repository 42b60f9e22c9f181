// Package models contains shared data models used across the VulnHunter codebase.
package models

import (
	"context"
	"errors"
)

// Sentinel errors returned by DiagnosisProvider implementations.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// DiagnosisProvider is the two-stage analysis contract every AI integration implements.
// Callers depend on this interface, never on a concrete provider.
type DiagnosisProvider interface {
	// Diagnose runs the first pass over line-numbered source text and returns the
	// model's raw JSON answer, which is fed verbatim into Analyze.
	Diagnose(ctx context.Context, input string) (string, error)
	// Analyze runs the auditing pass over the source text plus the first pass's
	// findings and returns the confirmed diagnostics.
	Analyze(ctx context.Context, input string) ([]Diagnostic, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}
