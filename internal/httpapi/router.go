// Package httpapi exposes the notification listener: the SOAP endpoint the
// backend calls when a filing review completes, plus health probes.
package httpapi

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/efilingbridge/internal/services"
	"github.com/go-chi/chi/v5"
)

// NotificationPath is where the backend posts review callbacks.
const NotificationPath = "/notify"

//go:embed ack.xml
var ackDocument []byte

// Receiver handles one callback document.
type Receiver interface {
	Receive(ctx context.Context, raw []byte) (services.NotificationResult, error)
}

// ReadyCheck reports whether the host can accept work.
type ReadyCheck func(ctx context.Context) error

// Handler serves the listener routes.
type Handler struct {
	receiver Receiver
	ready    ReadyCheck
	logger   *slog.Logger
}

// NewHandler binds the routes to receiver. ready may be nil.
func NewHandler(receiver Receiver, ready ReadyCheck, logger *slog.Logger) *Handler {
	return &Handler{receiver: receiver, ready: ready, logger: logger}
}

// NewRouter registers the listener routes and middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestID)
	r.Use(h.recoverer)
	r.Use(h.logging)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Post(NotificationPath, h.ServeNotification)
	return r
}
