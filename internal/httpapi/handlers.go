package httpapi

import (
	"errors"
	"io"
	"net/http"
)

// maxNotificationBytes bounds a callback body; filings are not echoed back
// in callbacks so they stay small.
const maxNotificationBytes = 16 << 20

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("Readiness check failed.", "error", err)
			writeText(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeText(w, http.StatusOK, "ready")
}

// ServeNotification accepts a POSTed review callback and acknowledges it.
// The acknowledgement does not depend on whether the response reached the
// gateway; a body that is not XML is answered with 400 and no acknowledgement.
func (h *Handler) ServeNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "notification too large")
			return
		}
		h.logger.Warn("Failed to read notification body.", "error", err)
		writeText(w, http.StatusBadRequest, "failed to read notification body")
		return
	}

	res, err := h.receiver.Receive(r.Context(), body)
	if err != nil {
		writeText(w, http.StatusBadRequest, "notification is not a valid XML document")
		return
	}
	h.logger.Info("Notification acknowledged.",
		"notificationId", res.ID,
		"caseDocketId", res.DocketID,
		"accepted", res.Accepted,
		"auditPath", res.AuditPath)

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ackDocument)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg+"\n")
}
