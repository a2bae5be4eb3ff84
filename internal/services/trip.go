package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TripInput carries the fields of a new trip. Nil pointers are missing fields.
type TripInput struct {
	Name            string
	Description     string
	Origin          string
	Destination     string
	Country         string
	StartDate       *models.Date
	EndDate         *models.Date
	BudgetMin       *float64
	BudgetMax       *float64
	Currency        string
	RoomType        string
	MaxParticipants *int
}

// TripPatch carries the fields to change on a trip. Nil means unchanged; an
// empty string clears a nullable field.
type TripPatch struct {
	Name            *string
	Description     *string
	Origin          *string
	Destination     *string
	Country         *string
	StartDate       *string
	EndDate         *string
	BudgetMin       *float64
	BudgetMax       *float64
	Currency        *string
	RoomType        *string
	MaxParticipants *int
}

// CreateTripResult is a created trip with its group room and the failures of
// the best-effort steps that followed the insert.
type CreateTripResult struct {
	Trip   *models.Trip
	Room   *models.ChatRoom
	Errors map[string]string
}

// LeaveResult tells whether leaving deleted the whole trip
type LeaveResult struct {
	TripDeleted bool
}

// SweepResult summarises one lifecycle sweep
type SweepResult struct {
	Checked   int               `json:"checked"`
	Activated int               `json:"activated"`
	Completed int               `json:"completed"`
	History   int               `json:"history_entries"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// TripService implements the trip lifecycle
type TripService struct {
	trips       TripStore
	members     TripMemberStore
	roomMembers ChatMemberStore
	provisioner *RoomProvisioner
	history     *HistoryRecorder
	now         func() time.Time
}

// NewTripService creates a new trip service
func NewTripService(st Stores, provisioner *RoomProvisioner, history *HistoryRecorder) *TripService {
	return &TripService{
		trips:       st.Trips,
		members:     st.TripMembers,
		roomMembers: st.RoomMembers,
		provisioner: provisioner,
		history:     history,
		now:         time.Now,
	}
}

// Create validates in, inserts the trip and provisions its group room and
// owner memberships. Provisioning failures are reported, not rolled back.
func (s *TripService) Create(ctx context.Context, creatorID string, in TripInput) (*CreateTripResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	in.Country = strings.TrimSpace(in.Country)
	in.RoomType = strings.TrimSpace(in.RoomType)

	required := []struct {
		field string
		ok    bool
	}{
		{"name", in.Name != ""},
		{"origin", in.Origin != ""},
		{"destination", in.Destination != ""},
		{"country", in.Country != ""},
		{"budget_min", in.BudgetMin != nil},
		{"budget_max", in.BudgetMax != nil},
		{"room_type", in.RoomType != ""},
		{"max_participants", in.MaxParticipants != nil},
	}
	for _, r := range required {
		if !r.ok {
			return nil, validationError(r.field, "%s is required", r.field)
		}
	}
	if err := checkBudget(*in.BudgetMin, *in.BudgetMax); err != nil {
		return nil, err
	}
	if *in.MaxParticipants <= 0 {
		return nil, validationError("max_participants", "max_participants must be a positive integer")
	}

	day := today(s.now)
	if in.StartDate != nil && in.StartDate.Before(day.Time) {
		return nil, validationError("start_date", "start_date cannot be in the past")
	}
	if err := checkDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	exists, err := s.trips.NameExists(ctx, in.Name, "")
	if err != nil {
		return nil, upstream("failed to check trip name", err)
	}
	if exists {
		return nil, businessError("a trip named %q already exists", in.Name)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	now := s.now()
	trip := &models.Trip{
		ID:              uuid.New().String(),
		Name:            in.Name,
		Description:     strings.TrimSpace(in.Description),
		Origin:          in.Origin,
		Destination:     in.Destination,
		Country:         in.Country,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		BudgetMin:       *in.BudgetMin,
		BudgetMax:       *in.BudgetMax,
		Currency:        currency,
		RoomType:        in.RoomType,
		MaxParticipants: *in.MaxParticipants,
		Status:          DeriveStatus(in.StartDate, in.EndDate, day),
		CreatorID:       creatorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.trips.Create(ctx, trip); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, businessError("a trip named %q already exists", in.Name)
		}
		return nil, upstream("failed to create trip", err)
	}

	errs := stepErrors{}
	room, err := s.provisioner.CreateGroupRoom(ctx, trip)
	errs.record("chat_room", err)

	owner := &models.TripMember{TripID: trip.ID, UserID: creatorID, Role: models.RoleOwner, JoinedAt: now}
	if errs.record("trip_member", s.members.Add(ctx, owner)) {
		trip.CurrentParticipants = 1
	}
	if room != nil {
		errs.record("chat_member", s.provisioner.EnsureMembers(ctx, room.ID,
			&models.ChatMember{RoomID: room.ID, UserID: creatorID, Role: models.RoleOwner, JoinedAt: now}))
	}

	log.Info().
		Str("trip_id", trip.ID).
		Str("creator_id", creatorID).
		Int("step_errors", len(errs)).
		Msg("Trip created")

	return &CreateTripResult{Trip: trip, Room: room, Errors: errs}, nil
}

// Update applies patch to a trip owned by userID
func (s *TripService) Update(ctx context.Context, userID, tripID string, patch TripPatch) (*models.Trip, error) {
	trip, err := s.getTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.CreatorID != userID {
		return nil, forbidden("only the trip creator can edit this trip")
	}
	before := *trip

	text := []struct {
		field    string
		value    *string
		target   *string
		required bool
	}{
		{"name", patch.Name, &trip.Name, true},
		{"description", patch.Description, &trip.Description, false},
		{"origin", patch.Origin, &trip.Origin, true},
		{"destination", patch.Destination, &trip.Destination, true},
		{"country", patch.Country, &trip.Country, true},
		{"currency", patch.Currency, &trip.Currency, true},
		{"room_type", patch.RoomType, &trip.RoomType, true},
	}
	for _, t := range text {
		if t.value == nil {
			continue
		}
		v := strings.TrimSpace(*t.value)
		if v == "" && t.required {
			return nil, validationError(t.field, "%s cannot be empty", t.field)
		}
		*t.target = v
	}
	trip.Currency = strings.ToUpper(trip.Currency)

	day := today(s.now)
	datesChanged := false
	for _, d := range []struct {
		field  string
		value  *string
		target **models.Date
	}{
		{"start_date", patch.StartDate, &trip.StartDate},
		{"end_date", patch.EndDate, &trip.EndDate},
	} {
		if d.value == nil {
			continue
		}
		datesChanged = true
		if strings.TrimSpace(*d.value) == "" {
			*d.target = nil
			continue
		}
		parsed, err := models.ParseDate(strings.TrimSpace(*d.value))
		if err != nil {
			return nil, validationError(d.field, "%s must be a date in YYYY-MM-DD format", d.field)
		}
		if parsed.Before(day.Time) {
			return nil, validationError(d.field, "%s cannot be in the past", d.field)
		}
		*d.target = &parsed
	}
	if err := checkDates(trip.StartDate, trip.EndDate); err != nil {
		return nil, err
	}

	if patch.BudgetMin != nil {
		trip.BudgetMin = *patch.BudgetMin
	}
	if patch.BudgetMax != nil {
		trip.BudgetMax = *patch.BudgetMax
	}
	if err := checkBudget(trip.BudgetMin, trip.BudgetMax); err != nil {
		return nil, err
	}

	if patch.MaxParticipants != nil {
		if *patch.MaxParticipants <= 0 {
			return nil, validationError("max_participants", "max_participants must be a positive integer")
		}
		if *patch.MaxParticipants < trip.CurrentParticipants {
			return nil, businessError("max_participants cannot be lower than the current %d participants", trip.CurrentParticipants)
		}
		trip.MaxParticipants = *patch.MaxParticipants
	}

	nameChanged := trip.Name != before.Name
	if nameChanged {
		exists, err := s.trips.NameExists(ctx, trip.Name, trip.ID)
		if err != nil {
			return nil, upstream("failed to check trip name", err)
		}
		if exists {
			return nil, businessError("a trip named %q already exists", trip.Name)
		}
	}

	if datesChanged {
		trip.Status = DeriveStatus(trip.StartDate, trip.EndDate, day)
	}
	trip.UpdatedAt = s.now()

	if err := s.trips.Update(ctx, trip); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, businessError("a trip named %q already exists", trip.Name)
		}
		return nil, upstream("failed to update trip", err)
	}

	if nameChanged {
		// the group room may still carry the old generated name
		if room, err := s.provisioner.GroupRoom(ctx, &before); bestEffort("find_group_room", err) {
			bestEffort("rename_group_room", s.provisioner.rooms.Rename(ctx, room.ID, GroupRoomName(trip.Name)))
		}
	}

	if trip.Status == models.TripCompleted && before.Status != models.TripCompleted {
		_, err := s.history.Record(ctx, trip)
		bestEffort("record_history", err)
	}

	log.Info().Str("trip_id", trip.ID).Str("user_id", userID).Msg("Trip updated")
	return trip, nil
}

// Get returns one trip
func (s *TripService) Get(ctx context.Context, tripID string) (*models.Trip, error) {
	return s.getTrip(ctx, tripID)
}

// List returns the trips matching filter
func (s *TripService) List(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	trips, err := s.trips.List(ctx, filter)
	if err != nil {
		return nil, upstream("failed to list trips", err)
	}
	return nonNil(trips), nil
}

// Mine returns the trips userID created or joined
func (s *TripService) Mine(ctx context.Context, userID string) ([]*models.Trip, error) {
	trips, err := s.trips.ListByMember(ctx, userID)
	if err != nil {
		return nil, upstream("failed to list trips", err)
	}
	return nonNil(trips), nil
}

// Members returns the participants of a trip to one of its participants
func (s *TripService) Members(ctx context.Context, userID, tripID string) ([]*models.TripMember, error) {
	trip, err := s.getTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, upstream("failed to list trip members", err)
	}
	allowed := trip.CreatorID == userID
	for _, m := range members {
		if m.UserID == userID {
			allowed = true
		}
	}
	if !allowed {
		return nil, forbidden("only trip participants can see the member list")
	}
	return nonNil(members), nil
}

// Join adds userID to a trip with free capacity
func (s *TripService) Join(ctx context.Context, userID, tripID string) (*models.TripMember, error) {
	trip, err := s.getTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status == models.TripCompleted {
		return nil, businessError("trip is already completed")
	}
	if _, err := s.members.Get(ctx, tripID, userID); err == nil {
		return nil, businessError("you are already a member of this trip")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, upstream("failed to check trip membership", err)
	}
	if err := checkCapacity(ctx, s.members, trip); err != nil {
		return nil, err
	}

	member := &models.TripMember{TripID: tripID, UserID: userID, Role: models.RoleMember, JoinedAt: s.now()}
	if err := s.members.Add(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, businessError("you are already a member of this trip")
		}
		return nil, upstream("failed to join trip", err)
	}
	bestEffort("join_group_room", s.provisioner.AddToGroup(ctx, trip, userID, models.RoleMember))

	log.Info().Str("trip_id", tripID).Str("user_id", userID).Msg("User joined trip")
	return member, nil
}

// checkCapacity rejects a new participant when the trip is full
func checkCapacity(ctx context.Context, members TripMemberStore, trip *models.Trip) error {
	count, err := members.Count(ctx, trip.ID)
	if err != nil {
		return upstream("failed to count trip members", err)
	}
	if trip.MaxParticipants > 0 && count >= trip.MaxParticipants {
		return businessError("trip is full")
	}
	return nil
}

// Leave removes userID from a trip. When the creator leaves, the trip is
// deleted together with its group room.
func (s *TripService) Leave(ctx context.Context, userID, tripID string) (*LeaveResult, error) {
	trip, err := s.getTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if trip.CreatorID == userID {
		s.provisioner.DeleteGroupRoom(ctx, trip)
		bestEffort("delete_trip_members", s.members.RemoveAll(ctx, tripID))
		if err := s.trips.Delete(ctx, tripID); err != nil {
			return nil, upstream("failed to delete trip", err)
		}
		log.Info().Str("trip_id", tripID).Str("user_id", userID).Msg("Trip deleted by its creator")
		return &LeaveResult{TripDeleted: true}, nil
	}

	if _, err := s.members.Get(ctx, tripID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, businessError("you are not a member of this trip")
		}
		return nil, upstream("failed to check trip membership", err)
	}
	if room, err := s.provisioner.GroupRoom(ctx, trip); bestEffort("find_group_room", err) {
		bestEffort("leave_group_room", s.roomMembers.Remove(ctx, room.ID, userID))
	}
	if err := s.members.Remove(ctx, tripID, userID); err != nil {
		return nil, upstream("failed to leave trip", err)
	}

	log.Info().Str("trip_id", tripID).Str("user_id", userID).Msg("User left trip")
	return &LeaveResult{TripDeleted: false}, nil
}

// Complete marks a trip completed on behalf of its creator and records history
func (s *TripService) Complete(ctx context.Context, userID, tripID string) (*models.Trip, int, error) {
	trip, err := s.getTrip(ctx, tripID)
	if err != nil {
		return nil, 0, err
	}
	if trip.CreatorID != userID {
		return nil, 0, forbidden("only the trip creator can complete this trip")
	}
	if trip.Status != models.TripCompleted {
		if err := s.trips.UpdateStatus(ctx, tripID, models.TripCompleted); err != nil {
			return nil, 0, upstream("failed to complete trip", err)
		}
		trip.Status = models.TripCompleted
	}
	inserted, err := s.history.Record(ctx, trip)
	if err != nil {
		return trip, inserted, upstream("failed to record trip history", err)
	}
	return trip, inserted, nil
}

// Sweep recomputes the status of every trip that is not completed yet and
// records history for the ones that just completed.
func (s *TripService) Sweep(ctx context.Context) (*SweepResult, error) {
	trips, err := s.trips.ListNotCompleted(ctx)
	if err != nil {
		return nil, upstream("failed to list trips", err)
	}

	day := today(s.now)
	result := &SweepResult{Errors: map[string]string{}}
	for _, trip := range trips {
		result.Checked++
		status := DeriveStatus(trip.StartDate, trip.EndDate, day)
		if status == trip.Status {
			continue
		}
		if err := s.trips.UpdateStatus(ctx, trip.ID, status); err != nil {
			result.Errors[trip.ID] = err.Error()
			log.Error().Err(err).Str("trip_id", trip.ID).Msg("Failed to update trip status")
			continue
		}
		trip.Status = status
		switch status {
		case models.TripActive:
			result.Activated++
		case models.TripCompleted:
			result.Completed++
			inserted, err := s.history.Record(ctx, trip)
			result.History += inserted
			if err != nil {
				result.Errors[trip.ID] = err.Error()
				log.Error().Err(err).Str("trip_id", trip.ID).Msg("Failed to record trip history")
			}
		}
	}

	log.Info().
		Int("checked", result.Checked).
		Int("activated", result.Activated).
		Int("completed", result.Completed).
		Msg("Trip lifecycle sweep finished")

	return result, nil
}

func (s *TripService) getTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	if tripID == "" {
		return nil, validationError("trip_id", "trip_id is required")
	}
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("trip", err)
		}
		return nil, upstream("failed to get trip", err)
	}
	return trip, nil
}

func checkBudget(lo, hi float64) error {
	if math.IsNaN(lo) || math.IsInf(lo, 0) {
		return validationError("budget_min", "budget_min must be a finite number")
	}
	if math.IsNaN(hi) || math.IsInf(hi, 0) {
		return validationError("budget_max", "budget_max must be a finite number")
	}
	if lo < 0 {
		return validationError("budget_min", "budget_min cannot be negative")
	}
	if hi < 0 {
		return validationError("budget_max", "budget_max cannot be negative")
	}
	if lo > hi {
		return validationError("budget_min", "budget_min cannot be greater than budget_max")
	}
	return nil
}

func checkDates(start, end *models.Date) error {
	if end != nil && start == nil {
		return validationError("start_date", "start_date is required when end_date is set")
	}
	if start != nil && end != nil && end.Before(start.Time) {
		return validationError("end_date", "end_date cannot be before start_date")
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
