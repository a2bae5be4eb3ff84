package services

import (
	"context"
	"testing"

	"trip-share-backend/internal/models"
)

func TestRateCompletedTrip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	carla := e.user(t, "carla")
	trip := e.trip(t, owner, "Ushuaia", 4)
	_, err := e.trips.Join(ctx, bob, trip.ID)
	mustNoErr(t, err, "join")

	_, err = e.history.Rate(ctx, bob, trip.ID, 5, nil)
	expectKind(t, err, KindBusinessRule)

	_, inserted, err := e.trips.Complete(ctx, owner, trip.ID)
	mustNoErr(t, err, "complete")
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}

	for _, rating := range []int{0, 6} {
		_, err = e.history.Rate(ctx, bob, trip.ID, rating, nil)
		expectKind(t, err, KindValidation)
	}
	_, err = e.history.Rate(ctx, carla, trip.ID, 4, nil)
	expectKind(t, err, KindBusinessRule)

	entry, err := e.history.Rate(ctx, bob, trip.ID, 4, stringPtr("muy bueno"))
	mustNoErr(t, err, "rate")
	if entry.Rating == nil || *entry.Rating != 4 || entry.Review == nil || *entry.Review != "muy bueno" {
		t.Errorf("entry = %+v", entry)
	}

	list, err := e.history.ListForUser(ctx, bob)
	mustNoErr(t, err, "list")
	if len(list) != 1 || list[0].TripName != "Ushuaia" || list[0].Role != models.HistoryMember {
		t.Fatalf("history = %+v", list)
	}
	if list[0].Rating == nil || *list[0].Rating != 4 {
		t.Errorf("stored rating = %v", list[0].Rating)
	}

	list, err = e.history.ListForUser(ctx, carla)
	mustNoErr(t, err, "list empty")
	if list == nil || len(list) != 0 {
		t.Errorf("expected an empty list, got %v", list)
	}
}

func TestHistoryRolesFollowGroupRoom(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Jujuy", 4)
	_, err := e.trips.Join(ctx, bob, trip.ID)
	mustNoErr(t, err, "join")

	_, _, err = e.trips.Complete(ctx, owner, trip.ID)
	mustNoErr(t, err, "complete")

	entry, err := e.st.History.Get(ctx, trip.ID, owner)
	mustNoErr(t, err, "organizer entry")
	if entry.Role != models.HistoryOrganizer || entry.Status != models.TripCompleted {
		t.Errorf("organizer entry = %+v", entry)
	}
	if !entry.JoinedAt.Equal(trip.StartDate.Time) {
		t.Errorf("joined_at = %v, want trip start %v", entry.JoinedAt, trip.StartDate.Time)
	}
}
