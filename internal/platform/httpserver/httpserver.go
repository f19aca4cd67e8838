package httpserver

import (
	"net/http"
	"time"

	"roster/internal/platform/config"
)

// New builds the ops HTTP server. Admin reconcile requests run a full audit, so the
// write timeout is left to the handler's own context.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
