package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/api/problem"
	"github.com/gatherly/server/internal/audit"
	"github.com/gatherly/server/internal/events"
	"github.com/gatherly/server/internal/notify"
	"github.com/google/uuid"
)

// maxUploadBytes bounds event image uploads.
const maxUploadBytes = 10 << 20

type EventsHandler struct {
	Service   *events.Service
	Pipeline  *notify.Pipeline
	Audit     *audit.Logger
	UploadDir string
	Env       string
}

type eventResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartsAt    string `json:"startsAt"`
	Location    string `json:"location"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toEventResponse(event events.Event) eventResponse {
	return eventResponse{
		ID:          event.ULID,
		Name:        event.Name,
		Description: event.Description,
		StartsAt:    event.StartsAt.UTC().Format(time.RFC3339),
		Location:    event.Location,
		ImageURL:    event.ImageURL,
		CreatedBy:   event.CreatedBy,
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   event.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// List handles GET /events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := events.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", err, h.Env)
		return
	}

	list, err := h.Service.List(r.Context(), events.Pagination{Limit: limit})
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
		return
	}

	responses := make([]eventResponse, 0, len(list))
	for _, event := range list {
		responses = append(responses, toEventResponse(event))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": responses})
}

// Get handles GET /events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.GetByULID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, "https://gatherly.events/problems/not-found", "Event not found", nil, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"event": toEventResponse(*event)})
}

// Create handles POST /createEvent. The body is multipart form data with an
// optional image upload. A confirmation occurrence is published only after
// the database write has been acknowledged.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	account := middleware.CurrentAccount(r)
	if account == nil {
		problem.Write(w, r, http.StatusUnauthorized, "https://gatherly.events/problems/unauthorized", "Authentication required", problem.ErrUnauthorized, h.Env)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid multipart form", err, h.Env)
		return
	}

	startsAt, err := events.ParseStartsAt(r.FormValue("eventDateTime"))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", err, h.Env)
		return
	}

	imageURL := ""
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		imageURL, err = h.saveImage(file, header)
		if err != nil {
			problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
			return
		}
	}

	input := events.Input{
		Name:        r.FormValue("eventName"),
		Description: r.FormValue("eventDescription"),
		StartsAt:    startsAt,
		Location:    r.FormValue("eventLocation"),
		ImageURL:    imageURL,
	}

	event, err := h.Service.Create(r.Context(), input, account.ID)
	if err != nil {
		var validationErr events.ValidationError
		if errors.As(err, &validationErr) {
			problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
		return
	}

	// The write is committed; failure past this point never rolls it back.
	if h.Pipeline != nil {
		h.Pipeline.Publish(notify.EventCreated{
			CreatorEmail:    account.Email,
			CreatorUsername: account.Username,
			EventName:       event.Name,
			EventStartsAt:   event.StartsAt,
			EventLocation:   event.Location,
		})
	}

	h.Audit.LogSuccess("event.create", account.Username, "event", event.ULID, audit.ClientIP(r), nil)
	writeJSON(w, http.StatusCreated, map[string]any{"event": toEventResponse(*event)})
}

type eventUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartsAt    string `json:"startsAt"`
	Location    string `json:"location"`
	ImageURL    string `json:"imageUrl"`
}

// Update handles PUT /events/{id}.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req eventUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request body", err, h.Env)
		return
	}

	startsAt, err := events.ParseStartsAt(req.StartsAt)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", err, h.Env)
		return
	}

	id := r.PathValue("id")
	input := events.Input{
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    startsAt,
		Location:    req.Location,
		ImageURL:    strings.TrimSpace(req.ImageURL),
	}

	if err := h.Service.Update(r.Context(), id, input); err != nil {
		switch {
		case errors.Is(err, events.ErrNotFound):
			problem.Write(w, r, http.StatusNotFound, "https://gatherly.events/problems/not-found", "Event not found", nil, h.Env)
		case errors.As(err, new(events.ValidationError)):
			problem.Write(w, r, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", err, h.Env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
		}
		return
	}

	if account := middleware.CurrentAccount(r); account != nil {
		h.Audit.LogSuccess("event.update", account.Username, "event", id, audit.ClientIP(r), nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, events.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, "https://gatherly.events/problems/not-found", "Event not found", nil, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, h.Env)
		return
	}

	if account := middleware.CurrentAccount(r); account != nil {
		h.Audit.LogSuccess("event.delete", account.Username, "event", id, audit.ClientIP(r), nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveImage stores an uploaded image under the configured upload directory
// with a random name, keeping only the original extension.
func (h *EventsHandler) saveImage(file multipart.File, header *multipart.FileHeader) (string, error) {
	if h.UploadDir == "" {
		return "", fmt.Errorf("uploads are not configured")
	}
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(h.UploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, maxUploadBytes)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return "/uploads/" + name, nil
}
