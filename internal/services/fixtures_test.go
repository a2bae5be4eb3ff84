package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"trip-share-backend/internal/memstore"
	"trip-share-backend/internal/models"

	"github.com/google/uuid"
)

var testNow = time.Date(2030, 6, 15, 10, 0, 0, 0, time.UTC)

// fakeHub records every event per user; everybody is online
type fakeHub struct {
	mu     sync.Mutex
	events map[string][]WSMessage
}

func newFakeHub() *fakeHub {
	return &fakeHub{events: make(map[string][]WSMessage)}
}

func (h *fakeHub) SendToUser(userID string, message WSMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[userID] = append(h.events[userID], message)
	return nil
}

func (h *fakeHub) IsOnline(userID string) bool { return true }

func (h *fakeHub) count(userID, eventType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.events[userID] {
		if m.Type == eventType {
			n++
		}
	}
	return n
}

type fakePusher struct {
	mu     sync.Mutex
	tokens []string
}

func (p *fakePusher) Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, deviceToken)
	return nil
}

type sentMail struct {
	to, link string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendConfirmation(ctx context.Context, to, name, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, link})
	return nil
}

func (m *fakeMailer) SendInvite(ctx context.Context, to, inviterName, roomName, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, link})
	return nil
}

type testEnv struct {
	st      *memstore.Store
	stores  Stores
	hub     *fakeHub
	pusher  *fakePusher
	objects *memstore.Objects
	now     time.Time

	rooms    *RoomProvisioner
	history  *HistoryRecorder
	notifier *NotificationService
	trips    *TripService
	apps     *ApplicationService
	chat     *ChatService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memstore.New()
	e := &testEnv{
		st: st,
		stores: Stores{
			Users:         st.Users,
			Trips:         st.Trips,
			TripMembers:   st.TripMembers,
			Applications:  st.Applications,
			Rooms:         st.Rooms,
			RoomMembers:   st.RoomMembers,
			Messages:      st.Messages,
			Pairs:         st.Pairs,
			History:       st.History,
			Reviews:       st.Reviews,
			Reports:       st.Reports,
			Notifications: st.Notifications,
		},
		hub:     newFakeHub(),
		pusher:  &fakePusher{},
		objects: memstore.NewObjects("http://files.test"),
		now:     testNow,
	}
	clock := func() time.Time { return e.now }

	e.rooms = NewRoomProvisioner(e.stores)
	e.rooms.now = clock
	e.history = NewHistoryRecorder(e.stores, e.rooms)
	e.history.now = clock
	e.notifier = NewNotificationService(e.stores, e.hub, e.pusher)
	e.notifier.now = clock
	e.trips = NewTripService(e.stores, e.rooms, e.history)
	e.trips.now = clock
	e.apps = NewApplicationService(e.stores, e.rooms, e.notifier)
	e.apps.now = clock
	e.chat = NewChatService(e.stores, e.objects, e.hub, ChatOptions{})
	e.chat.now = clock
	return e
}

// tick moves the clock forward so rows get distinct timestamps
func (e *testEnv) tick() {
	e.now = e.now.Add(time.Second)
}

func (e *testEnv) addDays(days int) {
	e.now = e.now.AddDate(0, 0, days)
}

func (e *testEnv) user(t *testing.T, name string) string {
	t.Helper()
	id := uuid.New().String()
	err := e.st.Users.Create(context.Background(), &models.User{
		ID:             id,
		Email:          name + "@example.com",
		FirstName:      name,
		DocumentNumber: id,
		EmailConfirmed: true,
		CreatedAt:      e.now,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }

func datePtr(d models.Date) *models.Date { return &d }

func (e *testEnv) tripInput(name string, maxParticipants int) TripInput {
	start := models.DateOf(e.now.AddDate(0, 0, 10))
	return TripInput{
		Name:            name,
		Origin:          "Buenos Aires",
		Destination:     "Bariloche",
		Country:         "Argentina",
		StartDate:       datePtr(start),
		BudgetMin:       floatPtr(100),
		BudgetMax:       floatPtr(500),
		RoomType:        "shared",
		MaxParticipants: intPtr(maxParticipants),
	}
}

func (e *testEnv) trip(t *testing.T, creatorID, name string, maxParticipants int) *models.Trip {
	t.Helper()
	res, err := e.trips.Create(context.Background(), creatorID, e.tripInput(name, maxParticipants))
	if err != nil {
		t.Fatalf("create trip %s: %v", name, err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("create trip %s step errors: %v", name, res.Errors)
	}
	e.tick()
	return res.Trip
}

func (e *testEnv) roomMemberIDs(t *testing.T, roomID string) map[string]models.ChatRole {
	t.Helper()
	members, err := e.st.RoomMembers.List(context.Background(), roomID)
	if err != nil {
		t.Fatalf("list room members: %v", err)
	}
	out := make(map[string]models.ChatRole, len(members))
	for _, m := range members {
		out[m.UserID] = m.Role
	}
	return out
}

func expectKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected %v error, got %v (%v)", want, got, err)
	}
}

func mustNoErr(t *testing.T, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}
