package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Respond actions
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// ApplyResult is the application of a user with its private room
type ApplyResult struct {
	Application *models.Application
	Room        *models.ChatRoom
	Reused      bool
	Errors      map[string]string
}

// RespondResult is an application after the organizer's decision
type RespondResult struct {
	Application  *models.Application
	AutoRejected []string
	Errors       map[string]string
}

// ApplicationService implements the join request state machine
type ApplicationService struct {
	apps        ApplicationStore
	trips       TripStore
	members     TripMemberStore
	provisioner *RoomProvisioner
	notifier    *NotificationService
	now         func() time.Time
}

// NewApplicationService creates a new application service
func NewApplicationService(st Stores, provisioner *RoomProvisioner, notifier *NotificationService) *ApplicationService {
	return &ApplicationService{
		apps:        st.Applications,
		trips:       st.Trips,
		members:     st.TripMembers,
		provisioner: provisioner,
		notifier:    notifier,
		now:         time.Now,
	}
}

// Apply files a pending application of applicantID for tripID. Re-applying
// while pending returns the existing application.
func (s *ApplicationService) Apply(ctx context.Context, applicantID, tripID, message string) (*ApplyResult, error) {
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
	if trip.CreatorID == applicantID {
		return nil, businessError("you cannot apply to your own trip")
	}
	message = strings.TrimSpace(message)

	app, err := s.apps.FindPending(ctx, tripID, applicantID)
	reused := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, upstream("failed to look up application", err)
	}

	if !reused {
		if trip.Status == models.TripCompleted {
			return nil, businessError("trip is already completed")
		}
		if _, err := s.members.Get(ctx, tripID, applicantID); err == nil {
			return nil, businessError("you are already a member of this trip")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, upstream("failed to check trip membership", err)
		}
		if err := checkCapacity(ctx, s.members, trip); err != nil {
			return nil, err
		}

		now := s.now()
		app = &models.Application{
			ID:          uuid.New().String(),
			TripID:      tripID,
			ApplicantID: applicantID,
			Status:      models.ApplicationPending,
			Message:     message,
			CreatedAt:   now,
			UpdatedAt:   now,
			TripName:    trip.Name,
		}
		if err := s.apps.Create(ctx, app); err != nil {
			if !errors.Is(err, repository.ErrDuplicate) {
				return nil, upstream("failed to create application", err)
			}
			// lost a race with a concurrent apply
			existing, findErr := s.apps.FindPending(ctx, tripID, applicantID)
			if findErr != nil {
				return nil, upstream("failed to create application", errors.Join(err, findErr))
			}
			app = existing
			reused = true
		}
	}

	errs := stepErrors{}
	room, err := s.provisioner.EnsurePrivateRoom(ctx, trip, applicantID, app.ID)
	errs.record("private_room", err)

	if !reused {
		if room != nil && message != "" {
			_, err := s.provisioner.PostMarker(ctx, room.ID, applicantID, models.ApplicationMarker{
				ApplicationID: app.ID,
				Status:        models.ApplicationPending,
				Text:          message,
			})
			errs.record("application_message", err)
		}
		_, err := s.notifier.Notify(ctx, trip.CreatorID, NotifyApplicationReceived,
			"New application",
			fmt.Sprintf("Someone applied to join %s", trip.Name),
			"application", app.ID)
		bestEffort("notify_organizer", err)
	}

	log.Info().
		Str("application_id", app.ID).
		Str("trip_id", tripID).
		Str("applicant_id", applicantID).
		Bool("reused", reused).
		Msg("Application submitted")

	return &ApplyResult{Application: app, Room: room, Reused: reused, Errors: errs}, nil
}

// Respond accepts or rejects a pending application on behalf of the trip
// organizer. A terminal application never changes again.
func (s *ApplicationService) Respond(ctx context.Context, organizerID, applicationID, action string) (*RespondResult, error) {
	var status models.ApplicationStatus
	switch action {
	case ActionAccept:
		status = models.ApplicationAccepted
	case ActionReject:
		status = models.ApplicationRejected
	default:
		return nil, validationError("action", "action must be %q or %q", ActionAccept, ActionReject)
	}
	if applicationID == "" {
		return nil, validationError("application_id", "application_id is required")
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("application", err)
		}
		return nil, upstream("failed to get application", err)
	}
	trip, err := s.trips.GetByID(ctx, app.TripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("trip", err)
		}
		return nil, upstream("failed to get trip", err)
	}
	if trip.CreatorID != organizerID {
		return nil, forbidden("only the trip organizer can respond to applications")
	}
	if app.Status.Terminal() {
		return nil, businessError("application was already %s", app.Status)
	}
	if status == models.ApplicationAccepted {
		if err := checkCapacity(ctx, s.members, trip); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if err := s.apps.UpdateStatus(ctx, app.ID, status, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, businessError("application was already responded to")
		}
		return nil, upstream("failed to update application", err)
	}
	app.Status = status
	app.UpdatedAt = now
	app.RespondedAt = &now

	errs := stepErrors{}
	s.closeApplicationRoom(ctx, app, trip, errs)

	result := &RespondResult{Application: app, Errors: errs}
	if status == models.ApplicationAccepted {
		member := &models.TripMember{TripID: trip.ID, UserID: app.ApplicantID, Role: models.RoleMember, JoinedAt: now}
		if err := s.members.Add(ctx, member); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			errs.record("trip_member", err)
		}
		errs.record("group_room", s.provisioner.AddToGroup(ctx, trip, app.ApplicantID, models.RoleMember))

		rejected, err := s.rejectIfFull(ctx, trip, organizerID)
		errs.record("auto_reject", err)
		result.AutoRejected = rejected
	}
	s.notifyDecision(ctx, app, trip)

	log.Info().
		Str("application_id", app.ID).
		Str("trip_id", trip.ID).
		Str("status", string(status)).
		Msg("Application responded")

	return result, nil
}

// closeApplicationRoom posts the decision marker into the private room and
// flags the room closed unless it is linked to a different application.
// The room itself is kept.
func (s *ApplicationService) closeApplicationRoom(ctx context.Context, app *models.Application, trip *models.Trip, errs stepErrors) {
	room, err := s.provisioner.ApplicationRoom(ctx, app, trip.CreatorID)
	if err != nil {
		errs.record("private_room", err)
		return
	}
	text := "Application accepted"
	if app.Status == models.ApplicationRejected {
		text = "Application rejected"
	}
	_, err = s.provisioner.PostMarker(ctx, room.ID, trip.CreatorID, models.ApplicationMarker{
		ApplicationID: app.ID,
		Status:        app.Status,
		Text:          text,
	})
	errs.record("status_message", err)
	// the pair room may already serve another application of the same two users
	if room.ApplicationID != nil && *room.ApplicationID != app.ID {
		return
	}
	errs.record("close_room", s.provisioner.rooms.Close(ctx, room.ID, s.now()))
}

// rejectIfFull rejects the remaining pending applications once trip is full
func (s *ApplicationService) rejectIfFull(ctx context.Context, trip *models.Trip, organizerID string) ([]string, error) {
	count, err := s.members.Count(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	if trip.MaxParticipants <= 0 || count < trip.MaxParticipants {
		return nil, nil
	}

	pending, err := s.apps.ListPendingByTrip(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	var (
		rejected []string
		errs     []error
	)
	for _, app := range pending {
		now := s.now()
		if err := s.apps.UpdateStatus(ctx, app.ID, models.ApplicationRejected, now); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				errs = append(errs, fmt.Errorf("application %s: %w", app.ID, err))
			}
			continue
		}
		app.Status = models.ApplicationRejected
		app.RespondedAt = &now
		rejected = append(rejected, app.ID)

		s.closeApplicationRoom(ctx, app, trip, stepErrors{})
		s.notifyDecision(ctx, app, trip)
	}
	if len(rejected) > 0 {
		log.Info().Str("trip_id", trip.ID).Int("rejected", len(rejected)).Msg("Trip full, pending applications rejected")
	}
	return rejected, errors.Join(errs...)
}

func (s *ApplicationService) notifyDecision(ctx context.Context, app *models.Application, trip *models.Trip) {
	kind, title := NotifyApplicationAccepted, "Application accepted"
	message := fmt.Sprintf("You are now part of %s", trip.Name)
	if app.Status == models.ApplicationRejected {
		kind, title = NotifyApplicationRejected, "Application rejected"
		message = fmt.Sprintf("Your application to %s was not accepted", trip.Name)
	}
	_, err := s.notifier.Notify(ctx, app.ApplicantID, kind, title, message, "application", app.ID)
	bestEffort("notify_applicant", err)

	s.notifier.Publish(app.ApplicantID, WSMessage{
		Type: EventApplicationStatus,
		Data: map[string]any{
			"application_id": app.ID,
			"trip_id":        app.TripID,
			"status":         app.Status,
		},
	})
}

// ListMine returns the applications filed by userID
func (s *ApplicationService) ListMine(ctx context.Context, userID string) ([]*models.Application, error) {
	apps, err := s.apps.ListByApplicant(ctx, userID)
	if err != nil {
		return nil, upstream("failed to list applications", err)
	}
	return nonNil(apps), nil
}

// ListForTrip returns the applications of a trip to its organizer
func (s *ApplicationService) ListForTrip(ctx context.Context, userID, tripID string) ([]*models.Application, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("trip", err)
		}
		return nil, upstream("failed to get trip", err)
	}
	if trip.CreatorID != userID {
		return nil, forbidden("only the trip organizer can see its applications")
	}
	apps, err := s.apps.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, upstream("failed to list applications", err)
	}
	return nonNil(apps), nil
}
