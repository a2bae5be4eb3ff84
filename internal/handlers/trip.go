package handlers

import (
	"net/http"

	"trip-share-backend/internal/middleware"
	"trip-share-backend/internal/models"
	"trip-share-backend/internal/services"
)

// TripHandler handles trip endpoints
type TripHandler struct {
	tripService *services.TripService
}

// NewTripHandler creates a new trip handler
func NewTripHandler(tripService *services.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

type createTripRequest struct {
	CreatorID       string       `json:"creator_id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Origin          string       `json:"origin"`
	Destination     string       `json:"destination"`
	Country         string       `json:"country"`
	StartDate       *models.Date `json:"start_date"`
	EndDate         *models.Date `json:"end_date"`
	BudgetMin       *number      `json:"budget_min"`
	BudgetMax       *number      `json:"budget_max"`
	Currency        string       `json:"currency"`
	RoomType        string       `json:"room_type"`
	MaxParticipants *integer     `json:"max_participants"`
}

func presentDate(d *models.Date) *models.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}

// Create handles POST /trips
func (h *TripHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid trip request")
		return
	}
	userID, err := actingUser(r, req.CreatorID, "creator_id")
	if err != nil {
		respondServiceError(w, r, err, "Trip creation for another user")
		return
	}

	result, err := h.tripService.Create(r.Context(), userID, services.TripInput{
		Name:            req.Name,
		Description:     req.Description,
		Origin:          req.Origin,
		Destination:     req.Destination,
		Country:         req.Country,
		StartDate:       presentDate(req.StartDate),
		EndDate:         presentDate(req.EndDate),
		BudgetMin:       req.BudgetMin.float(),
		BudgetMax:       req.BudgetMax.float(),
		Currency:        req.Currency,
		RoomType:        req.RoomType,
		MaxParticipants: req.MaxParticipants.int(),
	})
	if err != nil {
		respondServiceError(w, r, err, "Failed to create trip")
		return
	}

	respondOK(w, envelope{
		"trip":   result.Trip,
		"room":   result.Room,
		"errors": result.Errors,
	})
}

type updateTripRequest struct {
	ID              string   `json:"id" validate:"required"`
	CreatorID       string   `json:"creator_id"`
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Origin          *string  `json:"origin"`
	Destination     *string  `json:"destination"`
	Country         *string  `json:"country"`
	StartDate       *string  `json:"start_date"`
	EndDate         *string  `json:"end_date"`
	BudgetMin       *number  `json:"budget_min"`
	BudgetMax       *number  `json:"budget_max"`
	Currency        *string  `json:"currency"`
	RoomType        *string  `json:"room_type"`
	MaxParticipants *integer `json:"max_participants"`
}

// Update handles POST /trips/update
func (h *TripHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateTripRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid trip update request")
		return
	}
	userID, err := actingUser(r, req.CreatorID, "creator_id")
	if err != nil {
		respondServiceError(w, r, err, "Trip update for another user")
		return
	}

	trip, err := h.tripService.Update(r.Context(), userID, req.ID, services.TripPatch{
		Name:            req.Name,
		Description:     req.Description,
		Origin:          req.Origin,
		Destination:     req.Destination,
		Country:         req.Country,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		BudgetMin:       req.BudgetMin.float(),
		BudgetMax:       req.BudgetMax.float(),
		Currency:        req.Currency,
		RoomType:        req.RoomType,
		MaxParticipants: req.MaxParticipants.int(),
	})
	if err != nil {
		respondServiceError(w, r, err, "Failed to update trip")
		return
	}
	respondOK(w, envelope{"trip": trip})
}

// List handles GET /trips
func (h *TripHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TripFilter{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Country:     q.Get("country"),
		Status:      models.TripStatus(q.Get("status")),
	}
	switch filter.Status {
	case "", models.TripUpcoming, models.TripActive, models.TripCompleted:
	default:
		respondServiceError(w, r, invalid("status", "status must be one of: upcoming active completed"), "Invalid trip filter")
		return
	}

	var err error
	if filter.BudgetMin, err = queryFloat(r, "budget_min"); err != nil {
		respondServiceError(w, r, err, "Invalid trip filter")
		return
	}
	if filter.BudgetMax, err = queryFloat(r, "budget_max"); err != nil {
		respondServiceError(w, r, err, "Invalid trip filter")
		return
	}

	trips, err := h.tripService.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list trips")
		return
	}
	respondOK(w, envelope{"trips": trips})
}

// Mine handles GET /trips/mine
func (h *TripHandler) Mine(w http.ResponseWriter, r *http.Request) {
	trips, err := h.tripService.Mine(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to list trips")
		return
	}
	respondOK(w, envelope{"trips": trips})
}

// Members handles GET /trips/members?trip_id=
func (h *TripHandler) Members(w http.ResponseWriter, r *http.Request) {
	tripID := r.URL.Query().Get("trip_id")
	if tripID == "" {
		respondServiceError(w, r, invalid("trip_id", "trip_id is required"), "Invalid members request")
		return
	}

	members, err := h.tripService.Members(r.Context(), middleware.GetUserID(r.Context()), tripID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list trip members")
		return
	}
	respondOK(w, envelope{"members": members})
}

type tripMembershipRequest struct {
	TripID string `json:"trip_id" validate:"required"`
	UserID string `json:"user_id"`
}

func (h *TripHandler) decodeMembership(w http.ResponseWriter, r *http.Request) (userID, tripID string, ok bool) {
	var req tripMembershipRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid membership request")
		return "", "", false
	}
	userID, err := actingUser(r, req.UserID, "user_id")
	if err != nil {
		respondServiceError(w, r, err, "Membership change for another user")
		return "", "", false
	}
	return userID, req.TripID, true
}

// Join handles POST /trips/join
func (h *TripHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, tripID, ok := h.decodeMembership(w, r)
	if !ok {
		return
	}

	member, err := h.tripService.Join(r.Context(), userID, tripID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to join trip")
		return
	}
	respondOK(w, envelope{"member": member})
}

// Leave handles POST /trips/leave
func (h *TripHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, tripID, ok := h.decodeMembership(w, r)
	if !ok {
		return
	}

	result, err := h.tripService.Leave(r.Context(), userID, tripID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to leave trip")
		return
	}
	respondOK(w, envelope{"trip_deleted": result.TripDeleted})
}

// Complete handles POST /trips/complete
func (h *TripHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, tripID, ok := h.decodeMembership(w, r)
	if !ok {
		return
	}

	trip, recorded, err := h.tripService.Complete(r.Context(), userID, tripID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to complete trip")
		return
	}
	respondOK(w, envelope{"trip": trip, "history_entries": recorded})
}

// Sweep handles POST /trips/sweep. The route is guarded by the cron key.
func (h *TripHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.tripService.Sweep(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "Failed to sweep trips")
		return
	}
	respondOK(w, envelope{"result": result})
}
