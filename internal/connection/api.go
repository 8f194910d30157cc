package connection

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carelink/platform/internal/notification"
	"github.com/carelink/platform/internal/shared/auth"
	"github.com/carelink/platform/internal/shared/errors"
	"github.com/carelink/platform/internal/shared/events"
	"github.com/carelink/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the connection module.
type Handler struct {
	repo       *Repository
	dispatcher *notification.Dispatcher
	delivery   *notification.Delivery
	bus        events.Publisher
}

// NewHandler creates a new connection handler.
func NewHandler(repo *Repository, dispatcher *notification.Dispatcher, delivery *notification.Delivery, bus events.Publisher) *Handler {
	return &Handler{repo: repo, dispatcher: dispatcher, delivery: delivery, bus: bus}
}

// Routes registers the connection routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{connectionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/status", h.UpdateStatus)
	})

	return r
}

// Create establishes a patient-doctor connection. The doctor's
// notification row commits with the connection itself.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	// Patients connect themselves; admins may connect on behalf.
	patientID := req.PatientID
	if user.UserType == auth.UserTypePatient {
		patientID = user.ID
	}
	if patientID.IsZero() || req.DoctorID.IsZero() {
		writeError(w, errors.BadRequest("patient_id and doctor_id are required"))
		return
	}

	conn := NewConnection(patientID, req.DoctorID)

	notif, err := h.dispatcher.ConnectionChanged(conn.DoctorID, conn.ID, conn.PatientID, nil, nil, "created")
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	if err := h.repo.Create(r.Context(), conn, notif); err != nil {
		writeError(w, err)
		return
	}

	if h.delivery != nil {
		h.delivery.Enqueue(notif)
	}

	if h.bus != nil {
		event := events.NewEvent("connection.created", "connection", map[string]any{
			"connection_id": conn.ID,
			"patient_id":    conn.PatientID,
			"doctor_id":     conn.DoctorID,
		}).WithActor(user.ID, user.UserType)
		h.bus.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusCreated, conn)
}

// List returns the caller's connections.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	connections, err := h.repo.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": connections})
}

// Get returns one connection; only its parties and admins may read it.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid connection ID"))
		return
	}

	conn, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if conn.PatientID != user.ID && conn.DoctorID != user.ID && !user.IsAdmin() {
		writeError(w, errors.Forbidden("not a party to this connection"))
		return
	}

	writeJSON(w, http.StatusOK, conn)
}

// UpdateStatus moves a connection through its lifecycle. Intake status
// is untouched: a disconnected pair keeps its session history.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid connection ID"))
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	switch req.Status {
	case StatusActive, StatusDisconnected, StatusBlocked:
	default:
		writeError(w, errors.BadRequest("invalid connection status"))
		return
	}

	conn, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if conn.PatientID != user.ID && conn.DoctorID != user.ID && !user.IsAdmin() {
		writeError(w, errors.Forbidden("not a party to this connection"))
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}

	notif, err := h.dispatcher.ConnectionChanged(conn.DoctorID, conn.ID, conn.PatientID,
		conn.PatientFirstName, conn.PatientLastName, string(req.Status))
	if err == nil {
		if createErr := h.repo.notifications.Create(r.Context(), notif); createErr == nil && h.delivery != nil {
			h.delivery.Enqueue(notif)
		}
	}

	w.WriteHeader(http.StatusNoContent)
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
