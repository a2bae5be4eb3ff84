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

// GroupRoomName is the display name given to the group room of a trip. Rooms
// created before the trip link existed are found again by this name.
func GroupRoomName(tripName string) string {
	return "Chat " + tripName
}

func privateRoomName(tripName string) string {
	return tripName + " (privado)"
}

// RoomProvisioner creates and locates the group and private rooms of trips
type RoomProvisioner struct {
	rooms    ChatRoomStore
	members  ChatMemberStore
	messages ChatMessageStore
	pairs    PairStore
	now      func() time.Time
}

// NewRoomProvisioner creates a new room provisioner
func NewRoomProvisioner(st Stores) *RoomProvisioner {
	return &RoomProvisioner{
		rooms:    st.Rooms,
		members:  st.RoomMembers,
		messages: st.Messages,
		pairs:    st.Pairs,
		now:      time.Now,
	}
}

// createRoom inserts room, falling back to the base columns when the store
// does not know the link columns.
func (p *RoomProvisioner) createRoom(ctx context.Context, room *models.ChatRoom) error {
	err := p.rooms.Create(ctx, room)
	if errors.Is(err, repository.ErrUndefinedColumn) {
		log.Warn().Err(err).Str("room_id", room.ID).Msg("Rooms table lacks link columns, creating minimal room")
		if err := p.rooms.CreateMinimal(ctx, room); err != nil {
			return err
		}
		room.TripID = nil
		room.ApplicationID = nil
		room.IsPrivate = false
		return nil
	}
	return err
}

// CreateGroupRoom creates the group room of a newly created trip
func (p *RoomProvisioner) CreateGroupRoom(ctx context.Context, trip *models.Trip) (*models.ChatRoom, error) {
	tripID := trip.ID
	room := &models.ChatRoom{
		ID:        uuid.New().String(),
		Name:      GroupRoomName(trip.Name),
		CreatorID: trip.CreatorID,
		TripID:    &tripID,
		IsGroup:   true,
		CreatedAt: p.now(),
	}
	if err := p.createRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create group room: %w", err)
	}
	return room, nil
}

// GroupRoom locates the group room of trip. A room found only by its name is
// stamped with the trip id so the next lookup finds it directly.
func (p *RoomProvisioner) GroupRoom(ctx context.Context, trip *models.Trip) (*models.ChatRoom, error) {
	room, err := p.rooms.FindGroupByTrip(ctx, trip.ID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	room, err = p.rooms.FindByName(ctx, GroupRoomName(trip.Name))
	if err != nil {
		return nil, err
	}
	if bestEffort("tag_group_room", p.rooms.MarkGroup(ctx, room.ID, trip.ID)) {
		tripID := trip.ID
		room.TripID = &tripID
		room.IsGroup = true
		room.IsPrivate = false
	}
	return room, nil
}

// AddToGroup grants userID access to the group room of trip
func (p *RoomProvisioner) AddToGroup(ctx context.Context, trip *models.Trip, userID string, role models.ChatRole) error {
	room, err := p.GroupRoom(ctx, trip)
	if err != nil {
		return fmt.Errorf("failed to locate group room: %w", err)
	}
	return p.EnsureMembers(ctx, room.ID, &models.ChatMember{RoomID: room.ID, UserID: userID, Role: role, JoinedAt: p.now()})
}

// EnsurePrivateRoom returns the private room between the organizer of trip
// and applicantID, creating it on first use. The room is indexed by the
// unordered user pair, so every trip shared by the same two users reuses it.
func (p *RoomProvisioner) EnsurePrivateRoom(ctx context.Context, trip *models.Trip, applicantID, applicationID string) (*models.ChatRoom, error) {
	organizerID := trip.CreatorID
	pair := models.NewUserPair(organizerID, applicantID)
	tripID := trip.ID
	appID := applicationID

	wants := func(roomID string) []*models.ChatMember {
		now := p.now()
		return []*models.ChatMember{
			{RoomID: roomID, UserID: organizerID, Role: models.RoleOwner, JoinedAt: now},
			{RoomID: roomID, UserID: applicantID, Role: models.RoleMember, JoinedAt: now},
		}
	}

	roomID, err := p.pairs.Get(ctx, pair)
	switch {
	case err == nil:
		room, err := p.rooms.GetByID(ctx, roomID)
		if err == nil {
			if bestEffort("refresh_room_link", p.rooms.UpdateLink(ctx, room.ID, &tripID, &appID)) {
				room.TripID = &tripID
				room.ApplicationID = &appID
				room.IsClosed = false
				room.ClosedAt = nil
			}
			if err := p.EnsureMembers(ctx, room.ID, wants(room.ID)...); err != nil {
				return room, fmt.Errorf("failed to sync private room members: %w", err)
			}
			return room, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load private room: %w", err)
		}
		log.Warn().Str("room_id", roomID).Msg("Direct conversation points at a missing room, recreating")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to look up direct conversation: %w", err)
	}

	room := &models.ChatRoom{
		ID:            uuid.New().String(),
		Name:          privateRoomName(trip.Name),
		CreatorID:     organizerID,
		TripID:        &tripID,
		ApplicationID: &appID,
		IsGroup:       false,
		IsPrivate:     true,
		CreatedAt:     p.now(),
	}
	if err := p.createRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create private room: %w", err)
	}
	bestEffort("index_private_room", p.pairs.Put(ctx, pair, room.ID))

	if err := p.EnsureMembers(ctx, room.ID, wants(room.ID)...); err != nil {
		return room, fmt.Errorf("failed to add private room members: %w", err)
	}
	return room, nil
}

// EnsureMembers adds the wanted members that are missing from roomID. A failed
// bulk insert is retried one row at a time; rows that already exist are fine.
func (p *RoomProvisioner) EnsureMembers(ctx context.Context, roomID string, wants ...*models.ChatMember) error {
	present := make(map[string]bool)
	current, err := p.members.List(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("Failed to list room members, inserting all")
	}
	for _, m := range current {
		present[m.UserID] = true
	}

	var missing []*models.ChatMember
	for _, w := range wants {
		if !present[w.UserID] {
			missing = append(missing, w)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	err = p.members.Add(ctx, missing...)
	if err == nil || (len(missing) == 1 && errors.Is(err, repository.ErrDuplicate)) {
		return nil
	}
	if len(missing) == 1 {
		return err
	}
	log.Warn().Err(err).Str("room_id", roomID).Msg("Bulk member insert failed, retrying one by one")

	var errs []error
	for _, m := range missing {
		if err := p.members.Add(ctx, m); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			errs = append(errs, fmt.Errorf("user %s: %w", m.UserID, err))
		}
	}
	return errors.Join(errs...)
}

// ApplicationRoom locates the private room of an application: by its
// application link first, then by the private rooms both users share,
// preferring one linked to the same trip.
func (p *RoomProvisioner) ApplicationRoom(ctx context.Context, app *models.Application, organizerID string) (*models.ChatRoom, error) {
	room, err := p.rooms.FindByApplication(ctx, app.ID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	organizerRooms, err := p.members.ListRoomIDs(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	applicantRooms, err := p.members.ListRoomIDs(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}
	shared := make(map[string]bool, len(organizerRooms))
	for _, id := range organizerRooms {
		shared[id] = true
	}

	var fallback *models.ChatRoom
	for _, id := range applicantRooms {
		if !shared[id] {
			continue
		}
		candidate, err := p.rooms.GetByID(ctx, id)
		if err != nil || candidate.IsGroup {
			continue
		}
		if candidate.TripID != nil && *candidate.TripID == app.TripID {
			return candidate, nil
		}
		// an unlinked room beats one relinked to another trip
		if fallback == nil || (candidate.TripID == nil && fallback.TripID != nil) {
			fallback = candidate
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("private room for application %s: %w", app.ID, repository.ErrNotFound)
}

// PostMarker appends an application marker message to roomID
func (p *RoomProvisioner) PostMarker(ctx context.Context, roomID, authorID string, marker models.ApplicationMarker) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		UserID:    authorID,
		Content:   models.EncodeApplicationMarker(marker),
		CreatedAt: p.now(),
		Marker:    &marker,
	}
	if err := p.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to post application marker: %w", err)
	}
	return msg, nil
}

// DeleteGroupRoom removes the group room of trip with its messages and
// memberships. Every step is best effort.
func (p *RoomProvisioner) DeleteGroupRoom(ctx context.Context, trip *models.Trip) {
	room, err := p.GroupRoom(ctx, trip)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			bestEffort("find_group_room", err)
		}
		return
	}
	bestEffort("delete_room_messages", p.messages.DeleteByRoom(ctx, room.ID))
	bestEffort("delete_room_members", p.members.RemoveAll(ctx, room.ID))
	bestEffort("delete_room", p.rooms.Delete(ctx, room.ID))
}
