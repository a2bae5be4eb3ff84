package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HistoryRecorder snapshots trip participation once a trip completes
type HistoryRecorder struct {
	history     TripHistoryStore
	roomMembers ChatMemberStore
	provisioner *RoomProvisioner
	now         func() time.Time
}

// NewHistoryRecorder creates a new history recorder
func NewHistoryRecorder(st Stores, provisioner *RoomProvisioner) *HistoryRecorder {
	return &HistoryRecorder{
		history:     st.History,
		roomMembers: st.RoomMembers,
		provisioner: provisioner,
		now:         time.Now,
	}
}

// Record appends a completed entry for every group room member of trip that
// has none yet, and returns how many entries were inserted.
func (h *HistoryRecorder) Record(ctx context.Context, trip *models.Trip) (int, error) {
	room, err := h.provisioner.GroupRoom(ctx, trip)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("trip_id", trip.ID).Msg("Trip has no group room, no history recorded")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to locate group room: %w", err)
	}

	members, err := h.roomMembers.List(ctx, room.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list group room members: %w", err)
	}

	existing, err := h.history.ListUserIDs(ctx, trip.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to read trip history: %w", err)
	}
	recorded := make(map[string]bool, len(existing))
	for _, id := range existing {
		recorded[id] = true
	}

	joinedAt := trip.CreatedAt
	if trip.StartDate != nil {
		joinedAt = trip.StartDate.Time
	}

	inserted := 0
	var errs []error
	for _, m := range members {
		if recorded[m.UserID] {
			continue
		}
		entry := &models.TripHistoryEntry{
			ID:        uuid.New().String(),
			UserID:    m.UserID,
			TripID:    trip.ID,
			Role:      models.HistoryRoleFor(m.Role),
			Status:    models.TripCompleted,
			JoinedAt:  joinedAt,
			CreatedAt: h.now(),
		}
		if err := h.history.Create(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			errs = append(errs, fmt.Errorf("user %s: %w", m.UserID, err))
			continue
		}
		recorded[m.UserID] = true
		inserted++
	}

	log.Info().
		Str("trip_id", trip.ID).
		Int("inserted", inserted).
		Msg("Trip history recorded")

	return inserted, errors.Join(errs...)
}

// ListForUser returns the trip history of a user
func (h *HistoryRecorder) ListForUser(ctx context.Context, userID string) ([]*models.TripHistoryEntry, error) {
	entries, err := h.history.ListByUser(ctx, userID)
	if err != nil {
		return nil, upstream("failed to get trip history", err)
	}
	return nonNil(entries), nil
}

// Rate stores the rating of a completed trip by one of its participants
func (h *HistoryRecorder) Rate(ctx context.Context, userID, tripID string, rating int, review *string) (*models.TripHistoryEntry, error) {
	if tripID == "" {
		return nil, validationError("trip_id", "trip_id is required")
	}
	if rating < 1 || rating > 5 {
		return nil, validationError("rating", "rating must be an integer between 1 and 5")
	}

	entry, err := h.history.Get(ctx, tripID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, businessError("you can only rate trips you have completed")
		}
		return nil, upstream("failed to get trip history", err)
	}
	if entry.Status != models.TripCompleted {
		return nil, businessError("you can only rate trips you have completed")
	}

	if err := h.history.Rate(ctx, tripID, userID, rating, review); err != nil {
		return nil, upstream("failed to rate trip", err)
	}
	entry.Rating = &rating
	entry.Review = review
	return entry, nil
}
