package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// SessionHandler handles the camera session endpoints.
type SessionHandler struct {
	runner *session.Runner
	// ctx bounds sessions started over HTTP; request contexts end with the
	// request and cannot be used.
	ctx context.Context
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(ctx context.Context, runner *session.Runner) *SessionHandler {
	return &SessionHandler{runner: runner, ctx: ctx}
}

// Status returns the session status.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.runner.Status())
}

// Start opens the camera and starts recognizing.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Start(h.ctx); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.runner.Status())
}

// Stop stops recognizing and releases the camera.
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Stop(); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.runner.Status())
}

// Frame processes one uploaded JPEG or PNG frame and records attendance for
// everyone identified in it. The image is the raw request body.
func (h *SessionHandler) Frame(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read frame")
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "empty frame")
		return
	}

	result, err := h.runner.ProcessEncoded(r.Context(), data)
	if err != nil && result.Labels == nil {
		respondDomainError(w, r, err)
		return
	}

	resp := map[string]any{
		"labels":     result.Labels,
		"identified": result.Identified,
	}
	if err != nil {
		// Faces were labeled but some attendance marks failed.
		resp["error"] = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// Events streams recognition events as server-sent events until the client
// disconnects.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	events, cancel := h.runner.Subscribe()
	defer cancel()

	sendSSEEvent(w, flusher, "status", h.runner.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "recognized", ev)
		}
	}
}
