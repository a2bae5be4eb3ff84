package services

import (
	"context"
	"errors"
	"testing"

	"trip-share-backend/internal/models"
)

func TestApplyIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Andes", 4)

	first, err := e.apps.Apply(ctx, bob, trip.ID, "quiero ir")
	mustNoErr(t, err, "first apply")
	e.tick()
	second, err := e.apps.Apply(ctx, bob, trip.ID, "quiero ir")
	mustNoErr(t, err, "second apply")

	if first.Application.ID != second.Application.ID {
		t.Fatalf("apply created two applications: %s and %s", first.Application.ID, second.Application.ID)
	}
	if first.Reused || !second.Reused {
		t.Errorf("reused flags = %v/%v, want false/true", first.Reused, second.Reused)
	}
	apps, err := e.apps.ListMine(ctx, bob)
	mustNoErr(t, err, "list mine")
	if len(apps) != 1 {
		t.Errorf("got %d applications, want 1", len(apps))
	}
	if first.Room == nil || second.Room == nil || first.Room.ID != second.Room.ID {
		t.Errorf("rooms differ: %+v / %+v", first.Room, second.Room)
	}
	// only the first apply posts the pending marker
	if n := e.st.MessageCount(first.Room.ID); n != 1 {
		t.Errorf("message count = %d, want 1", n)
	}
}

func TestApplyRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	carla := e.user(t, "carla")
	trip := e.trip(t, owner, "Full", 2)

	_, err := e.apps.Apply(ctx, owner, trip.ID, "")
	expectKind(t, err, KindBusinessRule)

	_, err = e.apps.Apply(ctx, bob, "missing", "")
	expectKind(t, err, KindNotFound)

	_, err = e.trips.Join(ctx, bob, trip.ID)
	mustNoErr(t, err, "join")
	_, err = e.apps.Apply(ctx, bob, trip.ID, "")
	expectKind(t, err, KindBusinessRule)

	_, err = e.apps.Apply(ctx, carla, trip.ID, "")
	expectKind(t, err, KindBusinessRule)
}

func TestApplyOpensPrivateRoom(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Salta", 4)

	res, err := e.apps.Apply(ctx, bob, trip.ID, "hola, me sumo")
	mustNoErr(t, err, "apply")
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected step errors: %v", res.Errors)
	}
	room := res.Room
	if room == nil || !room.IsPrivate || room.IsGroup || room.Name != "Salta (privado)" {
		t.Fatalf("unexpected private room %+v", room)
	}
	members := e.roomMemberIDs(t, room.ID)
	if members[owner] != models.RoleOwner || members[bob] != models.RoleMember {
		t.Errorf("private room members = %v", members)
	}

	msgs, err := e.chat.ListMessages(ctx, owner, room.ID, 0)
	mustNoErr(t, err, "list messages")
	if len(msgs) != 1 || msgs[0].Marker == nil {
		t.Fatalf("expected one marker message, got %+v", msgs)
	}
	if m := msgs[0].Marker; m.ApplicationID != res.Application.ID || m.Status != models.ApplicationPending || m.Text != "hola, me sumo" {
		t.Errorf("marker = %+v", m)
	}

	list, unread, err := e.notifier.List(ctx, owner, 0)
	mustNoErr(t, err, "notifications")
	if len(list) != 1 || unread != 1 || list[0].Type != NotifyApplicationReceived {
		t.Errorf("organizer notifications = %+v (unread %d)", list, unread)
	}
	if e.hub.count(owner, EventNotification) != 1 {
		t.Error("organizer should get a realtime notification")
	}
}

func TestPrivateRoomIsSharedByPair(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")

	var roomID string
	for _, name := range []string{"Uno", "Dos", "Tres"} {
		trip := e.trip(t, owner, name, 4)
		res, err := e.apps.Apply(ctx, bob, trip.ID, "")
		mustNoErr(t, err, "apply "+name)
		if res.Room == nil {
			t.Fatalf("no private room for %s: %v", name, res.Errors)
		}
		if roomID == "" {
			roomID = res.Room.ID
		} else if res.Room.ID != roomID {
			t.Fatalf("trip %s got room %s, want %s", name, res.Room.ID, roomID)
		}
		if res.Room.TripID == nil || *res.Room.TripID != trip.ID {
			t.Errorf("room should be linked to the latest trip %s", trip.ID)
		}
	}
	// three group rooms and one private room
	if n := e.st.RoomCount(); n != 4 {
		t.Errorf("room count = %d, want 4", n)
	}
}

func TestRespondIsTerminal(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Mendoza", 4)
	applied, err := e.apps.Apply(ctx, bob, trip.ID, "")
	mustNoErr(t, err, "apply")
	appID := applied.Application.ID

	_, err = e.apps.Respond(ctx, owner, appID, "maybe")
	expectKind(t, err, KindValidation)

	_, err = e.apps.Respond(ctx, bob, appID, ActionAccept)
	expectKind(t, err, KindAuthorization)

	res, err := e.apps.Respond(ctx, owner, appID, ActionAccept)
	mustNoErr(t, err, "accept")
	if res.Application.Status != models.ApplicationAccepted {
		t.Fatalf("status = %s", res.Application.Status)
	}

	_, err = e.apps.Respond(ctx, owner, appID, ActionReject)
	expectKind(t, err, KindBusinessRule)

	app, err := e.st.Applications.GetByID(ctx, appID)
	mustNoErr(t, err, "get application")
	if app.Status != models.ApplicationAccepted {
		t.Errorf("status flipped to %s", app.Status)
	}
}

func TestAcceptJoinsTripAndClosesRoom(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Iguazu", 4)
	applied, err := e.apps.Apply(ctx, bob, trip.ID, "")
	mustNoErr(t, err, "apply")
	e.tick()

	res, err := e.apps.Respond(ctx, owner, applied.Application.ID, ActionAccept)
	mustNoErr(t, err, "accept")
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected step errors: %v", res.Errors)
	}

	if _, err := e.st.TripMembers.Get(ctx, trip.ID, bob); err != nil {
		t.Errorf("bob should be a trip member: %v", err)
	}
	group, err := e.rooms.GroupRoom(ctx, trip)
	mustNoErr(t, err, "group room")
	if _, ok := e.roomMemberIDs(t, group.ID)[bob]; !ok {
		t.Error("bob should be in the group room")
	}

	room, err := e.st.Rooms.GetByID(ctx, applied.Room.ID)
	mustNoErr(t, err, "private room")
	if !room.IsClosed || room.ClosedAt == nil {
		t.Error("private room should be closed")
	}
	msgs, err := e.chat.ListMessages(ctx, bob, room.ID, 0)
	mustNoErr(t, err, "messages")
	last := msgs[len(msgs)-1]
	if last.Marker == nil || last.Marker.Status != models.ApplicationAccepted {
		t.Errorf("last message marker = %+v", last.Marker)
	}
	_, err = e.chat.Send(ctx, bob, room.ID, "gracias")
	expectKind(t, err, KindBusinessRule)

	list, _, err := e.notifier.List(ctx, bob, 0)
	mustNoErr(t, err, "notifications")
	if len(list) != 1 || list[0].Type != NotifyApplicationAccepted {
		t.Errorf("applicant notifications = %+v", list)
	}
	if e.hub.count(bob, EventApplicationStatus) != 1 {
		t.Error("applicant should get an application_status event")
	}
}

func TestReapplyReopensPrivateRoom(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	first := e.trip(t, owner, "Primero", 4)
	second := e.trip(t, owner, "Segundo", 4)

	applied, err := e.apps.Apply(ctx, bob, first.ID, "")
	mustNoErr(t, err, "apply first")
	_, err = e.apps.Respond(ctx, owner, applied.Application.ID, ActionReject)
	mustNoErr(t, err, "reject")

	again, err := e.apps.Apply(ctx, bob, second.ID, "")
	mustNoErr(t, err, "apply second")
	if again.Room.ID != applied.Room.ID {
		t.Fatalf("expected the same private room")
	}
	if again.Room.IsClosed {
		t.Error("reused room should be open again")
	}
	_, err = e.chat.Send(ctx, bob, again.Room.ID, "otra vez")
	mustNoErr(t, err, "send")
}

func TestRespondKeepsPairRoomOpenForAnotherPendingApplication(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	first := e.trip(t, owner, "Norte", 4)
	second := e.trip(t, owner, "Sur", 4)

	appA, err := e.apps.Apply(ctx, bob, first.ID, "")
	mustNoErr(t, err, "apply first")
	appB, err := e.apps.Apply(ctx, bob, second.ID, "")
	mustNoErr(t, err, "apply second")
	if appA.Room.ID != appB.Room.ID {
		t.Fatalf("expected one room for the pair")
	}

	res, err := e.apps.Respond(ctx, owner, appA.Application.ID, ActionReject)
	mustNoErr(t, err, "reject first")
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected step errors: %v", res.Errors)
	}
	room, err := e.st.Rooms.GetByID(ctx, appB.Room.ID)
	mustNoErr(t, err, "room")
	if room.IsClosed {
		t.Fatal("room still serving a pending application was closed")
	}
	_, err = e.chat.Send(ctx, bob, room.ID, "¿y el otro viaje?")
	mustNoErr(t, err, "send")

	msgs, err := e.chat.ListMessages(ctx, bob, room.ID, 0)
	mustNoErr(t, err, "messages")
	found := false
	for _, m := range msgs {
		if m.Marker != nil && m.Marker.ApplicationID == appA.Application.ID {
			found = m.Marker.Status == models.ApplicationRejected
		}
	}
	if !found {
		t.Error("rejection marker missing from the pair room")
	}

	_, err = e.apps.Respond(ctx, owner, appB.Application.ID, ActionAccept)
	mustNoErr(t, err, "accept second")
	room, err = e.st.Rooms.GetByID(ctx, appB.Room.ID)
	mustNoErr(t, err, "room")
	if !room.IsClosed {
		t.Error("room should close once its linked application is decided")
	}
}

func TestAcceptFillingTripRejectsOthers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	carla := e.user(t, "carla")
	trip := e.trip(t, owner, "Duo", 2)

	bobApp, err := e.apps.Apply(ctx, bob, trip.ID, "")
	mustNoErr(t, err, "bob applies")
	carlaApp, err := e.apps.Apply(ctx, carla, trip.ID, "")
	mustNoErr(t, err, "carla applies")

	res, err := e.apps.Respond(ctx, owner, bobApp.Application.ID, ActionAccept)
	mustNoErr(t, err, "accept bob")
	if len(res.AutoRejected) != 1 || res.AutoRejected[0] != carlaApp.Application.ID {
		t.Fatalf("auto rejected = %v", res.AutoRejected)
	}

	app, err := e.st.Applications.GetByID(ctx, carlaApp.Application.ID)
	mustNoErr(t, err, "get carla application")
	if app.Status != models.ApplicationRejected {
		t.Errorf("carla status = %s, want rejected", app.Status)
	}
	room, err := e.st.Rooms.GetByID(ctx, carlaApp.Room.ID)
	mustNoErr(t, err, "carla room")
	if !room.IsClosed {
		t.Error("carla's private room should be closed")
	}

	_, err = e.apps.Respond(ctx, owner, carlaApp.Application.ID, ActionAccept)
	expectKind(t, err, KindBusinessRule)
}

func TestAcceptWhenFull(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	carla := e.user(t, "carla")
	trip := e.trip(t, owner, "Tight", 2)

	applied, err := e.apps.Apply(ctx, bob, trip.ID, "")
	mustNoErr(t, err, "apply")
	_, err = e.trips.Join(ctx, carla, trip.ID)
	mustNoErr(t, err, "carla joins")

	_, err = e.apps.Respond(ctx, owner, applied.Application.ID, ActionAccept)
	expectKind(t, err, KindBusinessRule)
	app, _ := e.st.Applications.GetByID(ctx, applied.Application.ID)
	if app.Status != models.ApplicationPending {
		t.Errorf("status = %s, want pending", app.Status)
	}
}

func TestPrivateRoomMembersFallBackToSingleInserts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Retry", 4)
	e.st.FailOn("room_members.add_bulk", errors.New("batch rejected"))

	res, err := e.apps.Apply(ctx, bob, trip.ID, "")
	mustNoErr(t, err, "apply")
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected step errors: %v", res.Errors)
	}
	if members := e.roomMemberIDs(t, res.Room.ID); len(members) != 2 {
		t.Errorf("private room members = %v", members)
	}
}

func TestApplyToleratesRoomFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Flaky", 4)
	e.st.FailOn("rooms.create", errors.New("timeout"))

	res, err := e.apps.Apply(ctx, bob, trip.ID, "hola")
	mustNoErr(t, err, "apply")
	if _, ok := res.Errors["private_room"]; !ok {
		t.Errorf("expected private_room step error, got %v", res.Errors)
	}
	if res.Application.Status != models.ApplicationPending {
		t.Errorf("status = %s", res.Application.Status)
	}

	e.st.FailOn("rooms.create", nil)
	rres, err := e.apps.Respond(ctx, owner, res.Application.ID, ActionReject)
	mustNoErr(t, err, "reject without room")
	if _, ok := rres.Errors["private_room"]; !ok {
		t.Errorf("expected private_room step error, got %v", rres.Errors)
	}
}

func TestListForTripIsOrganizerOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "ana")
	bob := e.user(t, "bob")
	trip := e.trip(t, owner, "Listado", 4)
	_, err := e.apps.Apply(ctx, bob, trip.ID, "")
	mustNoErr(t, err, "apply")

	apps, err := e.apps.ListForTrip(ctx, owner, trip.ID)
	mustNoErr(t, err, "list")
	if len(apps) != 1 || apps[0].TripName != "Listado" {
		t.Errorf("applications = %+v", apps)
	}
	_, err = e.apps.ListForTrip(ctx, bob, trip.ID)
	expectKind(t, err, KindAuthorization)
}
