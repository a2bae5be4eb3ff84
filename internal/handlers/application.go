package handlers

import (
	"net/http"

	"trip-share-backend/internal/middleware"
	"trip-share-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ApplicationHandler handles join requests and trip history
type ApplicationHandler struct {
	applicationService *services.ApplicationService
	history            *services.HistoryRecorder
}

// NewApplicationHandler creates a new application handler
func NewApplicationHandler(applicationService *services.ApplicationService, history *services.HistoryRecorder) *ApplicationHandler {
	return &ApplicationHandler{applicationService: applicationService, history: history}
}

type applyRequest struct {
	TripID      string `json:"trip_id" validate:"required"`
	ApplicantID string `json:"applicant_id"`
	Message     string `json:"message"`
}

// Apply handles POST /applications
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid application request")
		return
	}
	userID, err := actingUser(r, req.ApplicantID, "applicant_id")
	if err != nil {
		respondServiceError(w, r, err, "Application for another user")
		return
	}

	result, err := h.applicationService.Apply(r.Context(), userID, req.TripID, req.Message)
	if err != nil {
		respondServiceError(w, r, err, "Failed to apply")
		return
	}
	respondOK(w, envelope{
		"application": result.Application,
		"room":        result.Room,
		"reused":      result.Reused,
		"errors":      result.Errors,
	})
}

type respondRequest struct {
	ApplicationID string `json:"application_id" validate:"required"`
	Action        string `json:"action" validate:"required,oneof=accept reject"`
	OrganizerID   string `json:"organizer_id"`
}

// Respond handles POST /applications/respond
func (h *ApplicationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid respond request")
		return
	}
	userID, err := actingUser(r, req.OrganizerID, "organizer_id")
	if err != nil {
		respondServiceError(w, r, err, "Response on behalf of another user")
		return
	}

	result, err := h.applicationService.Respond(r.Context(), userID, req.ApplicationID, req.Action)
	if err != nil {
		respondServiceError(w, r, err, "Failed to respond to application")
		return
	}
	respondOK(w, envelope{
		"application":   result.Application,
		"auto_rejected": result.AutoRejected,
		"errors":        result.Errors,
	})
}

// Mine handles GET /applications/mine
func (h *ApplicationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	apps, err := h.applicationService.ListMine(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to list applications")
		return
	}
	respondOK(w, envelope{"applications": apps})
}

// ForTrip handles GET /trips/{trip_id}/applications
func (h *ApplicationHandler) ForTrip(w http.ResponseWriter, r *http.Request) {
	apps, err := h.applicationService.ListForTrip(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "trip_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to list trip applications")
		return
	}
	respondOK(w, envelope{"applications": apps})
}

// History handles GET /history
func (h *ApplicationHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to list trip history")
		return
	}
	respondOK(w, envelope{"history": entries})
}

type rateRequest struct {
	TripID string   `json:"trip_id" validate:"required"`
	Rating *integer `json:"rating" validate:"required"`
	Review *string  `json:"review"`
}

// Rate handles POST /history/rate
func (h *ApplicationHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid rating request")
		return
	}

	entry, err := h.history.Rate(r.Context(), middleware.GetUserID(r.Context()), req.TripID, int(*req.Rating), req.Review)
	if err != nil {
		respondServiceError(w, r, err, "Failed to rate trip")
		return
	}
	respondOK(w, envelope{"entry": entry})
}
