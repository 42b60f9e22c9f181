package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/vulnhunter/internal/api/middleware"
	"github.com/kiranshivaraju/vulnhunter/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler      http.HandlerFunc
	InitSessionHandler http.HandlerFunc
	AddFileHandler     http.HandlerFunc
	ScanHandler        http.HandlerFunc
	DiagnosticsHandler http.HandlerFunc
	PositionHandler    http.HandlerFunc
	GetUploadHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)
		r.Use(deps.Auth.RequireScope(mw.ScopeScan))

		r.Post("/api/v1/uploads", orNotImplemented(deps.InitSessionHandler))
		r.Get("/api/v1/uploads/{uploadID}", orNotImplemented(deps.GetUploadHandler))
		r.Post("/api/v1/uploads/{uploadID}/files", orNotImplemented(deps.AddFileHandler))
		r.Post("/api/v1/uploads/{uploadID}/scan", orNotImplemented(deps.ScanHandler))
		r.Get("/api/v1/uploads/{uploadID}/diagnostics", orNotImplemented(deps.DiagnosticsHandler))
		r.Get("/api/v1/uploads/{uploadID}/position", orNotImplemented(deps.PositionHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
