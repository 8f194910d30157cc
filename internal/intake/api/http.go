package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carelink/platform/internal/intake"
	"github.com/carelink/platform/internal/shared/auth"
	"github.com/carelink/platform/internal/shared/errors"
	"github.com/carelink/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the intake module.
type Handler struct {
	service *intake.Service
}

// NewHandler creates a new intake handler.
func NewHandler(service *intake.Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the intake routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/messages", h.SendMessage)
		r.Post("/reset", h.Reset)
		r.Post("/review", h.Review)
	})

	return r
}

// CreateSessionRequest opens a session on a connection.
type CreateSessionRequest struct {
	ConnectionID types.ID `json:"connection_id"`
	DisplayName  string   `json:"display_name,omitempty"`
}

// SendMessageRequest is one patient turn.
type SendMessageRequest struct {
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// CreateSession opens an intake session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.ConnectionID.IsZero() {
		writeError(w, errors.BadRequest("connection_id is required"))
		return
	}

	session, err := h.service.CreateSession(r.Context(), user, req.ConnectionID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// GetSession returns a session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid session ID"))
		return
	}

	session, err := h.service.GetSession(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// SendMessage runs one conversation turn.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid session ID"))
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	resp, err := h.service.SendMessage(r.Context(), user, id, req.Content, req.Images)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Reset rewinds a session to its initial state.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid session ID"))
		return
	}

	session, err := h.service.Reset(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     session.ID,
		"status": session.Status,
	})
}

// Review marks a ready session reviewed; doctors only.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if user.UserType != auth.UserTypeDoctor && !user.IsAdmin() {
		writeError(w, errors.Forbidden("doctor access required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid session ID"))
		return
	}

	session, err := h.service.Review(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
