package http

import (
	"log/slog"
	"net/http"

	"github.com/agrismart-api/internal/application/auth"
	"github.com/agrismart-api/internal/transport/http/handler"
	appmiddleware "github.com/agrismart-api/internal/transport/http/middleware"
)

// Deps holds everything the router needs from the composition root.
type Deps struct {
	AuthService auth.Service
	Tokens      appmiddleware.TokenVerifier
	// Checks back the readiness endpoint, keyed by backend name.
	Checks  map[string]handler.Check
	Metrics http.Handler
	Logger  *slog.Logger
}
