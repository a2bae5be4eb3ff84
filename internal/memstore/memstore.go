// Package memstore keeps every table in process memory. It backs the
// service tests and the "memory" database driver for local runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"
)

type tables struct {
	mu sync.RWMutex

	users         map[string]*models.User
	trips         map[string]*models.Trip
	tripMembers   []*models.TripMember
	applications  map[string]*models.Application
	rooms         map[string]*models.ChatRoom
	roomMembers   []*models.ChatMember
	messages      []*models.ChatMessage
	pairs         map[models.UserPair]string
	history       []*models.TripHistoryEntry
	reviews       []*models.Review
	reports       []*models.Report
	suspensions   []*models.Suspension
	notifications []*models.Notification

	faults map[string]error
}

// Store exposes one handle per table over shared state
type Store struct {
	t *tables

	Users         *UserStore
	Trips         *TripStore
	TripMembers   *TripMemberStore
	Applications  *ApplicationStore
	Rooms         *RoomStore
	RoomMembers   *RoomMemberStore
	Messages      *MessageStore
	Pairs         *PairStore
	History       *HistoryStore
	Reviews       *ReviewStore
	Reports       *ReportStore
	Notifications *NotificationStore
}

// New creates an empty store
func New() *Store {
	t := &tables{
		users:        make(map[string]*models.User),
		trips:        make(map[string]*models.Trip),
		applications: make(map[string]*models.Application),
		rooms:        make(map[string]*models.ChatRoom),
		pairs:        make(map[models.UserPair]string),
		faults:       make(map[string]error),
	}
	return &Store{
		t:             t,
		Users:         &UserStore{t},
		Trips:         &TripStore{t},
		TripMembers:   &TripMemberStore{t},
		Applications:  &ApplicationStore{t},
		Rooms:         &RoomStore{t},
		RoomMembers:   &RoomMemberStore{t},
		Messages:      &MessageStore{t},
		Pairs:         &PairStore{t},
		History:       &HistoryStore{t},
		Reviews:       &ReviewStore{t},
		Reports:       &ReportStore{t},
		Notifications: &NotificationStore{t},
	}
}

// FailOn makes the named operation (for example "rooms.create") return err
// until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err == nil {
		delete(s.t.faults, op)
		return
	}
	s.t.faults[op] = err
}

// AddSuspension seeds a suspension record
func (s *Store) AddSuspension(susp *models.Suspension) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	cp := *susp
	s.t.suspensions = append(s.t.suspensions, &cp)
}

// fault must be called with mu held
func (t *tables) fault(op string) error {
	if err, ok := t.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *tables) userName(id string) string {
	if u, ok := t.users[id]; ok {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return ""
}

func notFound(what string) error {
	return fmt.Errorf("%s not found: %w", what, repository.ErrNotFound)
}

// UserStore holds user profiles
type UserStore struct{ t *tables }

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("users.create"); err != nil {
		return err
	}
	for _, u := range s.t.users {
		if strings.EqualFold(u.Email, user.Email) || u.DocumentNumber == user.DocumentNumber {
			return fmt.Errorf("failed to create user: %w", repository.ErrDuplicate)
		}
	}
	cp := *user
	s.t.users[user.ID] = &cp
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	u, ok := s.t.users[id]
	if !ok {
		return nil, notFound("user")
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for _, u := range s.t.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFound("user")
}

func (s *UserStore) ConfirmEmail(ctx context.Context, token string) (*models.User, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if token == "" {
		return nil, notFound("confirmation token")
	}
	for _, u := range s.t.users {
		if u.ConfirmationToken == token {
			u.EmailConfirmed = true
			u.ConfirmationToken = ""
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFound("confirmation token")
}

func (s *UserStore) UpdateProfile(ctx context.Context, user *models.User) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	u, ok := s.t.users[user.ID]
	if !ok {
		return notFound("user")
	}
	u.FirstName, u.LastName = user.FirstName, user.LastName
	u.DocumentNumber, u.Sex = user.DocumentNumber, user.Sex
	u.BirthDate, u.Age, u.Email = user.BirthDate, user.Age, user.Email
	return nil
}

func (s *UserStore) UpdatePushToken(ctx context.Context, userID string, token *string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if u, ok := s.t.users[userID]; ok {
		u.PushToken = token
	}
	return nil
}

func (s *UserStore) UpdateAvatarURL(ctx context.Context, userID, url string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	u, ok := s.t.users[userID]
	if !ok {
		return notFound("user")
	}
	u.AvatarURL = &url
	return nil
}

// TripStore holds trips
type TripStore struct{ t *tables }

func (s *TripStore) withCount(trip *models.Trip) *models.Trip {
	cp := *trip
	cp.CurrentParticipants = 0
	for _, m := range s.t.tripMembers {
		if m.TripID == trip.ID {
			cp.CurrentParticipants++
		}
	}
	return &cp
}

func (s *TripStore) Create(ctx context.Context, trip *models.Trip) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("trips.create"); err != nil {
		return err
	}
	for _, existing := range s.t.trips {
		if strings.EqualFold(existing.Name, trip.Name) {
			return fmt.Errorf("failed to create trip: %w", repository.ErrDuplicate)
		}
	}
	cp := *trip
	s.t.trips[trip.ID] = &cp
	return nil
}

func (s *TripStore) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	trip, ok := s.t.trips[id]
	if !ok {
		return nil, notFound("trip")
	}
	return s.withCount(trip), nil
}

func (s *TripStore) List(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	contains := func(value, part string) bool {
		return part == "" || strings.Contains(strings.ToLower(value), strings.ToLower(part))
	}
	var out []*models.Trip
	for _, trip := range s.t.trips {
		switch {
		case !contains(trip.Origin, filter.Origin),
			!contains(trip.Destination, filter.Destination),
			!contains(trip.Country, filter.Country),
			filter.Status != "" && trip.Status != filter.Status,
			filter.BudgetMin != nil && trip.BudgetMin < *filter.BudgetMin,
			filter.BudgetMax != nil && trip.BudgetMax > *filter.BudgetMax:
			continue
		}
		out = append(out, s.withCount(trip))
	}
	sortTripsNewestFirst(out)
	return out, nil
}

func (s *TripStore) ListByMember(ctx context.Context, userID string) ([]*models.Trip, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	member := make(map[string]bool)
	for _, m := range s.t.tripMembers {
		if m.UserID == userID {
			member[m.TripID] = true
		}
	}
	var out []*models.Trip
	for _, trip := range s.t.trips {
		if trip.CreatorID == userID || member[trip.ID] {
			out = append(out, s.withCount(trip))
		}
	}
	sortTripsNewestFirst(out)
	return out, nil
}

func (s *TripStore) ListNotCompleted(ctx context.Context) ([]*models.Trip, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.Trip
	for _, trip := range s.t.trips {
		if trip.Status != models.TripCompleted {
			out = append(out, s.withCount(trip))
		}
	}
	sortTripsNewestFirst(out)
	return out, nil
}

func (s *TripStore) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for _, trip := range s.t.trips {
		if trip.ID != excludeID && strings.EqualFold(trip.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (s *TripStore) Update(ctx context.Context, trip *models.Trip) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if _, ok := s.t.trips[trip.ID]; !ok {
		return notFound("trip")
	}
	for _, other := range s.t.trips {
		if other.ID != trip.ID && strings.EqualFold(other.Name, trip.Name) {
			return fmt.Errorf("failed to update trip: %w", repository.ErrDuplicate)
		}
	}
	cp := *trip
	s.t.trips[trip.ID] = &cp
	return nil
}

func (s *TripStore) UpdateStatus(ctx context.Context, id string, status models.TripStatus) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	trip, ok := s.t.trips[id]
	if !ok {
		return notFound("trip")
	}
	trip.Status = status
	trip.UpdatedAt = time.Now()
	return nil
}

func (s *TripStore) Delete(ctx context.Context, id string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("trips.delete"); err != nil {
		return err
	}
	if _, ok := s.t.trips[id]; !ok {
		return notFound("trip")
	}
	delete(s.t.trips, id)
	return nil
}

func sortTripsNewestFirst(trips []*models.Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		if trips[i].CreatedAt.Equal(trips[j].CreatedAt) {
			return trips[i].ID < trips[j].ID
		}
		return trips[i].CreatedAt.After(trips[j].CreatedAt)
	})
}

// TripMemberStore holds trip participants
type TripMemberStore struct{ t *tables }

func (s *TripMemberStore) Add(ctx context.Context, member *models.TripMember) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("trip_members.add"); err != nil {
		return err
	}
	for _, m := range s.t.tripMembers {
		if m.TripID == member.TripID && m.UserID == member.UserID {
			return fmt.Errorf("failed to add trip member: %w", repository.ErrDuplicate)
		}
	}
	cp := *member
	s.t.tripMembers = append(s.t.tripMembers, &cp)
	return nil
}

func (s *TripMemberStore) Count(ctx context.Context, tripID string) (int, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	n := 0
	for _, m := range s.t.tripMembers {
		if m.TripID == tripID {
			n++
		}
	}
	return n, nil
}

func (s *TripMemberStore) Get(ctx context.Context, tripID, userID string) (*models.TripMember, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for _, m := range s.t.tripMembers {
		if m.TripID == tripID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, notFound("trip member")
}

func (s *TripMemberStore) ListByTrip(ctx context.Context, tripID string) ([]*models.TripMember, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.TripMember
	for _, m := range s.t.tripMembers {
		if m.TripID == tripID {
			cp := *m
			cp.UserName = s.t.userName(m.UserID)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *TripMemberStore) Remove(ctx context.Context, tripID, userID string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.tripMembers = keepRows(s.t.tripMembers, func(m *models.TripMember) bool {
		return !(m.TripID == tripID && m.UserID == userID)
	})
	return nil
}

func (s *TripMemberStore) RemoveAll(ctx context.Context, tripID string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("trip_members.remove_all"); err != nil {
		return err
	}
	s.t.tripMembers = keepRows(s.t.tripMembers, func(m *models.TripMember) bool { return m.TripID != tripID })
	return nil
}

func keepRows[T any](rows []T, keep func(T) bool) []T {
	out := rows[:0]
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
