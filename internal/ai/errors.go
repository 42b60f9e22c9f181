package ai

import "github.com/kiranshivaraju/vulnhunter/pkg/models"

// Provider errors live in models so that provider packages can return them
// without importing this package.
var (
	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInvalidResponse     = models.ErrInvalidResponse
)
