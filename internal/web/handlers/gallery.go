package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// GalleryHandler handles gallery endpoints. Every change to the gallery runs
// with the camera stream paused.
type GalleryHandler struct {
	gallery   *gallery.Gallery
	runner    *session.Runner
	tolerance float64
	metrics   *metrics.Metrics
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(g *gallery.Gallery, runner *session.Runner, tolerance float64, m *metrics.Metrics) *GalleryHandler {
	return &GalleryHandler{
		gallery:   g,
		runner:    runner,
		tolerance: tolerance,
		metrics:   m,
	}
}

// GalleryResponse lists the registered people.
type GalleryResponse struct {
	Names []string `json:"names"`
	Size  int      `json:"size"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Name       string              `json:"name"`
	Size       int                 `json:"size"`
	LookAlikes []database.Neighbor `json:"look_alikes,omitempty"`
}

// CaptureRequest registers a person from the live camera.
type CaptureRequest struct {
	Name string `json:"name"`
}

// List returns the registered names in registration order.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	names := h.gallery.Names()
	respondJSON(w, http.StatusOK, GalleryResponse{Names: names, Size: len(names)})
}

// Register registers a person from an uploaded image. The multipart form
// carries the person's name in "name" and the image in "file".
func (h *GalleryHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	err = h.runner.Paused(r.Context(), func(ctx context.Context) error {
		return h.gallery.Register(ctx, name, data)
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.registered(w, name)
}

// Capture registers a person from one frame of the live camera.
func (h *GalleryHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.runner.RegisterFromCamera(r.Context(), req.Name, h.gallery); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.registered(w, req.Name)
}

func (h *GalleryHandler) registered(w http.ResponseWriter, name string) {
	name = facematch.NormalizeName(name)
	size := h.gallery.Size()
	h.metrics.SetGallerySize(size)

	resp := RegisterResponse{Name: name, Size: size}
	resp.LookAlikes = h.lookAlikes(name)
	if len(resp.LookAlikes) > 0 {
		slog.Warn("registered face resembles other people",
			"name", sanitizeForLog(name), "look_alikes", len(resp.LookAlikes))
	}
	respondJSON(w, http.StatusCreated, resp)
}

// lookAlikes returns the other people within matching tolerance of name.
func (h *GalleryHandler) lookAlikes(name string) []database.Neighbor {
	idx := database.NewGalleryIndex()
	idx.Build(h.gallery.Snapshot())

	neighbors, ok := idx.Neighbors(name, constants.DefaultNeighborCount)
	if !ok {
		return nil
	}
	var similar []database.Neighbor
	for _, n := range neighbors {
		if n.Distance <= h.tolerance {
			similar = append(similar, n)
		}
	}
	return similar
}

// Remove deregisters a person.
func (h *GalleryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing name")
		return
	}

	err := h.runner.Paused(r.Context(), func(ctx context.Context) error {
		return h.gallery.Remove(ctx, name)
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.metrics.SetGallerySize(h.gallery.Size())
	respondJSON(w, http.StatusOK, map[string]any{"removed": name, "size": h.gallery.Size()})
}

// Reload rebuilds the gallery from the reference image directory.
func (h *GalleryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	var report *gallery.LoadReport
	err := h.runner.Paused(r.Context(), func(ctx context.Context) error {
		var err error
		report, err = h.gallery.Load(ctx)
		return err
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	h.metrics.SetGallerySize(h.gallery.Size())
	respondJSON(w, http.StatusOK, map[string]any{
		"loaded":  report.Loaded,
		"no_face": report.NoFace,
		"failed":  report.Failed,
	})
}

// Neighbors returns the registered people whose faces are closest to name.
func (h *GalleryHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	name := facematch.NormalizeName(chi.URLParam(r, "name"))

	k := constants.DefaultNeighborCount
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid k: %q", v))
			return
		}
		k = n
	}

	idx := database.NewGalleryIndex()
	idx.Build(h.gallery.Snapshot())

	neighbors, ok := idx.Neighbors(name, k)
	if !ok {
		respondDomainError(w, r, fmt.Errorf("%w: %q", gallery.ErrNotFound, name))
		return
	}
	if neighbors == nil {
		neighbors = []database.Neighbor{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"name": name, "neighbors": neighbors})
}
