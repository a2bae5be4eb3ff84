package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"
)

func TestDeriveStatus(t *testing.T) {
	day := func(y int, m time.Month, d int) *models.Date {
		date := models.NewDate(y, m, d)
		return &date
	}
	now := *day(2030, 6, 15)

	tests := []struct {
		name       string
		start, end *models.Date
		want       models.TripStatus
	}{
		{"no dates", nil, nil, models.TripUpcoming},
		{"start ahead, no end", day(2030, 7, 1), nil, models.TripUpcoming},
		{"start today, no end", day(2030, 6, 15), nil, models.TripActive},
		{"start passed, no end", day(2030, 6, 14), nil, models.TripCompleted},
		{"start and end today", day(2030, 6, 15), day(2030, 6, 15), models.TripActive},
		{"within range", day(2030, 6, 10), day(2030, 6, 20), models.TripActive},
		{"ends today", day(2030, 6, 10), day(2030, 6, 15), models.TripActive},
		{"ended yesterday", day(2030, 6, 10), day(2030, 6, 14), models.TripCompleted},
		{"range ahead", day(2030, 6, 16), day(2030, 6, 20), models.TripUpcoming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.start, tt.end, now); got != tt.want {
				t.Errorf("DeriveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCreateTripProvisionsGroupRoom(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")

	res, err := e.trips.Create(ctx, owner, e.tripInput("Patagonia", 4))
	mustNoErr(t, err, "create trip")
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected step errors: %v", res.Errors)
	}
	if res.Trip.Status != models.TripUpcoming {
		t.Errorf("status = %s, want upcoming", res.Trip.Status)
	}
	if res.Trip.Currency != "USD" {
		t.Errorf("currency = %q, want USD", res.Trip.Currency)
	}
	if res.Trip.CurrentParticipants != 1 {
		t.Errorf("current participants = %d, want 1", res.Trip.CurrentParticipants)
	}
	if res.Room == nil || res.Room.Name != "Chat Patagonia" || !res.Room.IsGroup {
		t.Fatalf("unexpected group room %+v", res.Room)
	}
	if role := e.roomMemberIDs(t, res.Room.ID)[owner]; role != models.RoleOwner {
		t.Errorf("creator room role = %q, want owner", role)
	}
	if _, err := e.st.TripMembers.Get(ctx, res.Trip.ID, owner); err != nil {
		t.Errorf("creator is not a trip member: %v", err)
	}
}

func TestCreateTripValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	e.trip(t, owner, "Taken", 3)

	tests := []struct {
		name  string
		edit  func(in *TripInput)
		kind  Kind
		field string
	}{
		{"missing name", func(in *TripInput) { in.Name = "  " }, KindValidation, "name"},
		{"missing budget", func(in *TripInput) { in.BudgetMax = nil }, KindValidation, "budget_max"},
		{"negative budget", func(in *TripInput) { in.BudgetMin = floatPtr(-1) }, KindValidation, "budget_min"},
		{"inverted budget", func(in *TripInput) { in.BudgetMin = floatPtr(900) }, KindValidation, "budget_min"},
		{"NaN budget", func(in *TripInput) { in.BudgetMin = floatPtr(math.NaN()) }, KindValidation, "budget_min"},
		{"infinite budget", func(in *TripInput) { in.BudgetMax = floatPtr(math.Inf(1)) }, KindValidation, "budget_max"},
		{"zero capacity", func(in *TripInput) { in.MaxParticipants = intPtr(0) }, KindValidation, "max_participants"},
		{"start in the past", func(in *TripInput) {
			in.StartDate = datePtr(models.DateOf(e.now.AddDate(0, 0, -1)))
		}, KindValidation, "start_date"},
		{"end before start", func(in *TripInput) {
			in.EndDate = datePtr(models.DateOf(e.now.AddDate(0, 0, 5)))
		}, KindValidation, "end_date"},
		{"end without start", func(in *TripInput) {
			in.StartDate = nil
			in.EndDate = datePtr(models.DateOf(e.now.AddDate(0, 0, 5)))
		}, KindValidation, "start_date"},
		{"duplicate name", func(in *TripInput) { in.Name = "taken" }, KindBusinessRule, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := e.tripInput("Fresh", 3)
			tt.edit(&in)
			_, err := e.trips.Create(ctx, owner, in)
			expectKind(t, err, tt.kind)
			var se *Error
			if errors.As(err, &se) && se.Field != tt.field {
				t.Errorf("field = %q, want %q", se.Field, tt.field)
			}
		})
	}
}

func TestCreateTripMinimalRoomFallback(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	e.st.FailOn("rooms.create", repository.ErrUndefinedColumn)

	res, err := e.trips.Create(ctx, owner, e.tripInput("Legacy", 3))
	mustNoErr(t, err, "create trip")
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected step errors: %v", res.Errors)
	}
	if res.Room == nil || res.Room.TripID != nil {
		t.Fatalf("expected an unlinked minimal room, got %+v", res.Room)
	}

	// found by name, then tagged so the id lookup works
	if _, err := e.st.Rooms.FindGroupByTrip(ctx, res.Trip.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("minimal room should not be linked yet, err = %v", err)
	}
	room, err := e.rooms.GroupRoom(ctx, res.Trip)
	mustNoErr(t, err, "group room")
	if room.ID != res.Room.ID {
		t.Errorf("group room = %s, want %s", room.ID, res.Room.ID)
	}
	tagged, err := e.st.Rooms.FindGroupByTrip(ctx, res.Trip.ID)
	mustNoErr(t, err, "find tagged room")
	if tagged.ID != res.Room.ID {
		t.Errorf("tagged room = %s, want %s", tagged.ID, res.Room.ID)
	}
}

func TestCreateTripReportsRoomFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	e.st.FailOn("rooms.create", errors.New("connection reset"))

	res, err := e.trips.Create(ctx, owner, e.tripInput("Roomless", 3))
	mustNoErr(t, err, "create trip")
	if _, ok := res.Errors["chat_room"]; !ok {
		t.Errorf("expected chat_room step error, got %v", res.Errors)
	}
	if res.Room != nil {
		t.Errorf("expected no room, got %+v", res.Room)
	}
	if _, err := e.st.Trips.GetByID(ctx, res.Trip.ID); err != nil {
		t.Errorf("trip should survive a failed room: %v", err)
	}
}

func TestJoinRespectsCapacity(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	carla := e.user(t, "carla")
	trip := e.trip(t, owner, "Small", 2)

	_, err := e.trips.Join(ctx, bob, trip.ID)
	mustNoErr(t, err, "bob joins")

	_, err = e.trips.Join(ctx, bob, trip.ID)
	expectKind(t, err, KindBusinessRule)

	_, err = e.trips.Join(ctx, carla, trip.ID)
	expectKind(t, err, KindBusinessRule)

	count, _ := e.st.TripMembers.Count(ctx, trip.ID)
	if count != 2 {
		t.Errorf("member count = %d, want 2", count)
	}
	if _, err := e.st.TripMembers.Get(ctx, trip.ID, carla); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("carla must not be a member, err = %v", err)
	}

	room, err := e.rooms.GroupRoom(ctx, trip)
	mustNoErr(t, err, "group room")
	if _, ok := e.roomMemberIDs(t, room.ID)[bob]; !ok {
		t.Error("bob should be in the group room")
	}
}

func TestLeaveByCreatorCascades(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Doomed", 5)
	_, err := e.trips.Join(ctx, bob, trip.ID)
	mustNoErr(t, err, "bob joins")
	room, err := e.rooms.GroupRoom(ctx, trip)
	mustNoErr(t, err, "group room")
	_, err = e.chat.Send(ctx, bob, room.ID, "hola")
	mustNoErr(t, err, "send")

	res, err := e.trips.Leave(ctx, owner, trip.ID)
	mustNoErr(t, err, "leave")
	if !res.TripDeleted {
		t.Error("expected the trip to be deleted")
	}
	if _, err := e.st.Trips.GetByID(ctx, trip.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("trip still exists, err = %v", err)
	}
	if n := e.st.RoomCount(); n != 0 {
		t.Errorf("room count = %d, want 0", n)
	}
	if n := e.st.MessageCount(room.ID); n != 0 {
		t.Errorf("message count = %d, want 0", n)
	}
	if members := e.roomMemberIDs(t, room.ID); len(members) != 0 {
		t.Errorf("room members left: %v", members)
	}
	if count, _ := e.st.TripMembers.Count(ctx, trip.ID); count != 0 {
		t.Errorf("trip members left: %d", count)
	}
}

func TestLeaveByMemberKeepsTrip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	carla := e.user(t, "carla")
	trip := e.trip(t, owner, "Kept", 5)
	for _, id := range []string{bob, carla} {
		_, err := e.trips.Join(ctx, id, trip.ID)
		mustNoErr(t, err, "join")
	}

	res, err := e.trips.Leave(ctx, bob, trip.ID)
	mustNoErr(t, err, "leave")
	if res.TripDeleted {
		t.Error("member leaving must not delete the trip")
	}
	if _, err := e.st.Trips.GetByID(ctx, trip.ID); err != nil {
		t.Errorf("trip should exist: %v", err)
	}
	room, err := e.rooms.GroupRoom(ctx, trip)
	mustNoErr(t, err, "group room")
	members := e.roomMemberIDs(t, room.ID)
	if _, ok := members[bob]; ok {
		t.Error("bob should have left the group room")
	}
	if _, ok := members[carla]; !ok {
		t.Error("carla should still be in the group room")
	}
	if _, ok := members[owner]; !ok {
		t.Error("owner should still be in the group room")
	}

	_, err = e.trips.Leave(ctx, bob, trip.ID)
	expectKind(t, err, KindBusinessRule)
}

func TestUpdateTrip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Old Name", 3)
	_, err := e.trips.Join(ctx, bob, trip.ID)
	mustNoErr(t, err, "join")

	_, err = e.trips.Update(ctx, bob, trip.ID, TripPatch{Name: stringPtr("Hijack")})
	expectKind(t, err, KindAuthorization)

	_, err = e.trips.Update(ctx, owner, trip.ID, TripPatch{Name: stringPtr("")})
	expectKind(t, err, KindValidation)

	_, err = e.trips.Update(ctx, owner, trip.ID, TripPatch{MaxParticipants: intPtr(1)})
	expectKind(t, err, KindBusinessRule)

	_, err = e.trips.Update(ctx, owner, trip.ID, TripPatch{StartDate: stringPtr("15/07/2030")})
	expectKind(t, err, KindValidation)

	updated, err := e.trips.Update(ctx, owner, trip.ID, TripPatch{
		Name:        stringPtr("New Name"),
		Description: stringPtr(""),
		Currency:    stringPtr("ars"),
		StartDate:   stringPtr(e.now.Format("2006-01-02")),
	})
	mustNoErr(t, err, "update")
	if updated.Name != "New Name" || updated.Currency != "ARS" || updated.Description != "" {
		t.Errorf("unexpected trip %+v", updated)
	}
	if updated.Status != models.TripActive {
		t.Errorf("status = %s, want active", updated.Status)
	}

	room, err := e.rooms.GroupRoom(ctx, updated)
	mustNoErr(t, err, "group room")
	if room.Name != "Chat New Name" {
		t.Errorf("room name = %q, want %q", room.Name, "Chat New Name")
	}
}

func TestUpdateTripRejectsPastDates(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	trip := e.trip(t, owner, "Past", 3)

	_, err := e.trips.Update(ctx, owner, trip.ID, TripPatch{
		StartDate: stringPtr(e.now.AddDate(0, 0, -3).Format("2006-01-02")),
		EndDate:   stringPtr(e.now.AddDate(0, 0, -1).Format("2006-01-02")),
	})
	expectKind(t, err, KindValidation)
	_, err = e.trips.Update(ctx, owner, trip.ID, TripPatch{
		EndDate: stringPtr(e.now.AddDate(0, 0, -1).Format("2006-01-02")),
	})
	expectKind(t, err, KindValidation)

	got, err := e.trips.Get(ctx, trip.ID)
	mustNoErr(t, err, "get")
	if got.Status != models.TripUpcoming {
		t.Errorf("status = %s, want upcoming", got.Status)
	}
}

func TestUpdateTripThatCompletesRecordsHistory(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	in := e.tripInput("Clear End", 3)
	in.EndDate = datePtr(models.DateOf(e.now.AddDate(0, 0, 20)))
	created, err := e.trips.Create(ctx, owner, in)
	mustNoErr(t, err, "create")

	// start has passed; dropping the end date leaves a one-day trip in the past
	e.addDays(12)
	updated, err := e.trips.Update(ctx, owner, created.Trip.ID, TripPatch{EndDate: stringPtr("")})
	mustNoErr(t, err, "update")
	if updated.Status != models.TripCompleted {
		t.Fatalf("status = %s, want completed", updated.Status)
	}

	entries, err := e.history.ListForUser(ctx, owner)
	mustNoErr(t, err, "history")
	if len(entries) != 1 {
		t.Errorf("owner history = %+v, want one entry", entries)
	}
}

func TestMembersIsParticipantsOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	stranger := e.user(t, "zed")
	trip := e.trip(t, owner, "Private", 3)
	_, err := e.trips.Join(ctx, bob, trip.ID)
	mustNoErr(t, err, "join")

	members, err := e.trips.Members(ctx, bob, trip.ID)
	mustNoErr(t, err, "members")
	if len(members) != 2 {
		t.Errorf("got %d members, want 2", len(members))
	}
	_, err = e.trips.Members(ctx, stranger, trip.ID)
	expectKind(t, err, KindAuthorization)
}

func TestCompletionRecordsHistoryOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Finished", 3)
	_, err := e.trips.Join(ctx, bob, trip.ID)
	mustNoErr(t, err, "join")

	// the trip starts in 10 days and has no end date
	e.addDays(11)
	res, err := e.trips.Sweep(ctx)
	mustNoErr(t, err, "sweep")
	if res.Completed != 1 || res.History != 2 {
		t.Fatalf("sweep = %+v, want 1 completed and 2 history entries", res)
	}

	_, inserted, err := e.trips.Complete(ctx, owner, trip.ID)
	mustNoErr(t, err, "complete")
	if inserted != 0 {
		t.Errorf("second completion inserted %d entries", inserted)
	}
	res, err = e.trips.Sweep(ctx)
	mustNoErr(t, err, "second sweep")
	if res.Checked != 0 || res.History != 0 {
		t.Errorf("second sweep = %+v", res)
	}

	entries, err := e.history.ListForUser(ctx, owner)
	mustNoErr(t, err, "owner history")
	if len(entries) != 1 || entries[0].Role != models.HistoryOrganizer {
		t.Fatalf("owner history = %+v", entries)
	}
	entries, err = e.history.ListForUser(ctx, bob)
	mustNoErr(t, err, "bob history")
	if len(entries) != 1 || entries[0].Role != models.HistoryMember {
		t.Fatalf("bob history = %+v", entries)
	}
	if !entries[0].JoinedAt.Equal(trip.StartDate.Time) {
		t.Errorf("joined at = %v, want trip start %v", entries[0].JoinedAt, trip.StartDate)
	}
}

func TestSweepActivatesTrips(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	in := e.tripInput("Long", 3)
	in.EndDate = datePtr(models.DateOf(e.now.AddDate(0, 0, 20)))
	created, err := e.trips.Create(ctx, owner, in)
	mustNoErr(t, err, "create")

	e.addDays(12)
	res, err := e.trips.Sweep(ctx)
	mustNoErr(t, err, "sweep")
	if res.Activated != 1 || res.Completed != 0 {
		t.Fatalf("sweep = %+v, want one activation", res)
	}
	trip, err := e.trips.Get(ctx, created.Trip.ID)
	mustNoErr(t, err, "get")
	if trip.Status != models.TripActive {
		t.Errorf("status = %s, want active", trip.Status)
	}

	_, _, err = e.trips.Complete(ctx, e.user(t, "bob"), trip.ID)
	expectKind(t, err, KindAuthorization)
}

func TestJoinCompletedTrip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	trip := e.trip(t, owner, "Over", 3)
	_, _, err := e.trips.Complete(ctx, owner, trip.ID)
	mustNoErr(t, err, "complete")

	_, err = e.trips.Join(ctx, e.user(t, "bob"), trip.ID)
	expectKind(t, err, KindBusinessRule)
}
