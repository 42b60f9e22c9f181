package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/vulnhunter/pkg/models"
)

// MockProvider satisfies models.DiagnosisProvider for testing. It records the
// inputs it receives.
type MockProvider struct {
	Name_        string
	DiagnoseFunc func(ctx context.Context, input string) (string, error)
	AnalyzeFunc  func(ctx context.Context, input string) ([]models.Diagnostic, error)

	mu            sync.Mutex
	diagnoseCalls []string
	analyzeCalls  []string
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Diagnose(ctx context.Context, input string) (string, error) {
	m.mu.Lock()
	m.diagnoseCalls = append(m.diagnoseCalls, input)
	m.mu.Unlock()
	if m.DiagnoseFunc != nil {
		return m.DiagnoseFunc(ctx, input)
	}
	return `{"vulnerabilities":[]}`, nil
}

func (m *MockProvider) Analyze(ctx context.Context, input string) ([]models.Diagnostic, error) {
	m.mu.Lock()
	m.analyzeCalls = append(m.analyzeCalls, input)
	m.mu.Unlock()
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, input)
	}
	return []models.Diagnostic{}, nil
}

// DiagnoseCalls returns the inputs passed to Diagnose, in call order.
func (m *MockProvider) DiagnoseCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.diagnoseCalls...)
}

// AnalyzeCalls returns the inputs passed to Analyze, in call order.
func (m *MockProvider) AnalyzeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.analyzeCalls...)
}

// NewMockProvider returns a MockProvider that reports one warning per Analyze call.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		DiagnoseFunc: func(_ context.Context, _ string) (string, error) {
			return `{"vulnerabilities":[{"file_path":"mock.go","file_name":"mock.go","line_number":1,"severity":"warning","vulnerability":"Mock finding","reasoning":"mock"}]}`, nil
		},
		AnalyzeFunc: func(_ context.Context, _ string) ([]models.Diagnostic, error) {
			return []models.Diagnostic{{
				FilePath:      "mock.go",
				FileName:      "mock.go",
				LineNumber:    1,
				Severity:      models.SeverityWarning,
				Vulnerability: "Mock finding",
				Reasoning:     "Simulated finding from mock provider",
			}}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		DiagnoseFunc: func(_ context.Context, _ string) (string, error) {
			return "", err
		},
		AnalyzeFunc: func(_ context.Context, _ string) ([]models.Diagnostic, error) {
			return nil, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		DiagnoseFunc: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		AnalyzeFunc: func(ctx context.Context, _ string) ([]models.Diagnostic, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

// Compile-time check that MockProvider implements DiagnosisProvider.
var _ models.DiagnosisProvider = (*MockProvider)(nil)
