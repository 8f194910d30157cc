package appointment

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carelink/platform/internal/connection"
	"github.com/carelink/platform/internal/notification"
	"github.com/carelink/platform/internal/shared/auth"
	"github.com/carelink/platform/internal/shared/errors"
	"github.com/carelink/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the appointment module.
type Handler struct {
	repo          *Repository
	connections   *connection.Repository
	notifications *notification.Repository
	dispatcher    *notification.Dispatcher
	delivery      *notification.Delivery
}

// NewHandler creates a new appointment handler.
func NewHandler(repo *Repository, connections *connection.Repository, notifications *notification.Repository, dispatcher *notification.Dispatcher, delivery *notification.Delivery) *Handler {
	return &Handler{
		repo:          repo,
		connections:   connections,
		notifications: notifications,
		dispatcher:    dispatcher,
		delivery:      delivery,
	}
}

// Routes registers the appointment routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Schedule)
	r.Get("/", h.ListByConnection)
	r.Route("/{appointmentID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/cancel", h.Cancel)
	})

	return r
}

// Schedule creates an appointment and notifies the counterparty.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.ConnectionID.IsZero() || req.ScheduledAt.IsZero() {
		writeError(w, errors.BadRequest("connection_id and scheduled_at are required"))
		return
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}

	conn, err := h.connections.GetByID(r.Context(), req.ConnectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if conn.PatientID != user.ID && conn.DoctorID != user.ID && !user.IsAdmin() {
		writeError(w, errors.Forbidden("not a party to this connection"))
		return
	}

	a := NewAppointment(req.ConnectionID, req.IntakeSessionID, req.ScheduledAt, req.DurationMinutes)
	if err := h.repo.Create(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	h.notifyCounterparty(r, user.ID, conn, a, "scheduled", "")

	writeJSON(w, http.StatusCreated, a)
}

// Get returns one appointment.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	a, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.connections.GetByID(r.Context(), a.ConnectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if conn.PatientID != user.ID && conn.DoctorID != user.ID && !user.IsAdmin() {
		writeError(w, errors.Forbidden("not a party to this connection"))
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// ListByConnection lists appointments on a connection.
func (h *Handler) ListByConnection(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	connID, err := types.ParseID(r.URL.Query().Get("connection_id"))
	if err != nil {
		writeError(w, errors.BadRequest("connection_id query parameter is required"))
		return
	}

	conn, err := h.connections.GetByID(r.Context(), connID)
	if err != nil {
		writeError(w, err)
		return
	}
	if conn.PatientID != user.ID && conn.DoctorID != user.ID && !user.IsAdmin() {
		writeError(w, errors.Forbidden("not a party to this connection"))
		return
	}

	appointments, err := h.repo.ListByConnection(r.Context(), connID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": appointments})
}

// Cancel cancels a scheduled appointment and notifies the counterparty.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	a, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.connections.GetByID(r.Context(), a.ConnectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if conn.PatientID != user.ID && conn.DoctorID != user.ID && !user.IsAdmin() {
		writeError(w, errors.Forbidden("not a party to this connection"))
		return
	}

	if err := h.repo.Cancel(r.Context(), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}

	h.notifyCounterparty(r, user.ID, conn, a, "cancelled", req.Reason)

	w.WriteHeader(http.StatusNoContent)
}

// notifyCounterparty writes and fans out the appointment notification to
// the party who did not act. Notification failure never fails the
// appointment action itself.
func (h *Handler) notifyCounterparty(r *http.Request, actorID types.ID, conn *connection.Connection, a *Appointment, action, cancelReason string) {
	recipient := conn.DoctorID
	if actorID == conn.DoctorID {
		recipient = conn.PatientID
	}

	notif, err := h.dispatcher.AppointmentAction(recipient, a.ID, a.ConnectionID,
		a.ScheduledAt, a.DurationMinutes, action, cancelReason)
	if err != nil {
		return
	}
	if err := h.notifications.Create(r.Context(), notif); err != nil {
		return
	}
	if h.delivery != nil {
		h.delivery.Enqueue(notif)
	}
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
