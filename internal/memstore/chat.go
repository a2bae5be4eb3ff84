package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"
)

// ApplicationStore holds trip applications
type ApplicationStore struct{ t *tables }

func (s *ApplicationStore) withTrip(app *models.Application) *models.Application {
	cp := *app
	if trip, ok := s.t.trips[app.TripID]; ok {
		cp.TripName = trip.Name
	}
	return &cp
}

func (s *ApplicationStore) Create(ctx context.Context, app *models.Application) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("applications.create"); err != nil {
		return err
	}
	if app.Status == models.ApplicationPending {
		for _, a := range s.t.applications {
			if a.TripID == app.TripID && a.ApplicantID == app.ApplicantID && a.Status == models.ApplicationPending {
				return fmt.Errorf("failed to create application: %w", repository.ErrDuplicate)
			}
		}
	}
	cp := *app
	s.t.applications[app.ID] = &cp
	return nil
}

func (s *ApplicationStore) GetByID(ctx context.Context, id string) (*models.Application, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	app, ok := s.t.applications[id]
	if !ok {
		return nil, notFound("application")
	}
	return s.withTrip(app), nil
}

func (s *ApplicationStore) FindPending(ctx context.Context, tripID, applicantID string) (*models.Application, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	if err := s.t.fault("applications.find_pending"); err != nil {
		return nil, err
	}
	for _, a := range s.t.applications {
		if a.TripID == tripID && a.ApplicantID == applicantID && a.Status == models.ApplicationPending {
			return s.withTrip(a), nil
		}
	}
	return nil, notFound("application")
}

func (s *ApplicationStore) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, at time.Time) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	app, ok := s.t.applications[id]
	if !ok || app.Status != models.ApplicationPending {
		return fmt.Errorf("application %s is not pending: %w", id, repository.ErrConflict)
	}
	app.Status = status
	app.UpdatedAt = at
	app.RespondedAt = &at
	return nil
}

func (s *ApplicationStore) ListByApplicant(ctx context.Context, applicantID string) ([]*models.Application, error) {
	return s.list(func(a *models.Application) bool { return a.ApplicantID == applicantID }, true), nil
}

func (s *ApplicationStore) ListByTrip(ctx context.Context, tripID string) ([]*models.Application, error) {
	return s.list(func(a *models.Application) bool { return a.TripID == tripID }, true), nil
}

func (s *ApplicationStore) ListPendingByTrip(ctx context.Context, tripID string) ([]*models.Application, error) {
	return s.list(func(a *models.Application) bool {
		return a.TripID == tripID && a.Status == models.ApplicationPending
	}, false), nil
}

func (s *ApplicationStore) list(match func(*models.Application) bool, newestFirst bool) []*models.Application {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.Application
	for _, a := range s.t.applications {
		if match(a) {
			out = append(out, s.withTrip(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RoomStore holds chat rooms. With the "rooms.create" fault set to
// repository.ErrUndefinedColumn it behaves like a deployment whose rooms
// table only has the base columns.
type RoomStore struct{ t *tables }

func (s *RoomStore) Create(ctx context.Context, room *models.ChatRoom) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("rooms.create"); err != nil {
		return err
	}
	cp := *room
	s.t.rooms[room.ID] = &cp
	return nil
}

func (s *RoomStore) CreateMinimal(ctx context.Context, room *models.ChatRoom) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("rooms.create_minimal"); err != nil {
		return err
	}
	s.t.rooms[room.ID] = &models.ChatRoom{
		ID:        room.ID,
		Name:      room.Name,
		CreatorID: room.CreatorID,
		IsGroup:   room.IsGroup,
		CreatedAt: room.CreatedAt,
	}
	return nil
}

func (s *RoomStore) GetByID(ctx context.Context, id string) (*models.ChatRoom, error) {
	return s.find(func(r *models.ChatRoom) bool { return r.ID == id })
}

func (s *RoomStore) FindGroupByTrip(ctx context.Context, tripID string) (*models.ChatRoom, error) {
	return s.find(func(r *models.ChatRoom) bool {
		return r.IsGroup && r.TripID != nil && *r.TripID == tripID
	})
}

func (s *RoomStore) FindByName(ctx context.Context, name string) (*models.ChatRoom, error) {
	return s.find(func(r *models.ChatRoom) bool { return r.Name == name })
}

func (s *RoomStore) FindByApplication(ctx context.Context, applicationID string) (*models.ChatRoom, error) {
	return s.find(func(r *models.ChatRoom) bool {
		return r.ApplicationID != nil && *r.ApplicationID == applicationID
	})
}

// find returns the oldest matching room
func (s *RoomStore) find(match func(*models.ChatRoom) bool) (*models.ChatRoom, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var best *models.ChatRoom
	for _, r := range s.t.rooms {
		if !match(r) {
			continue
		}
		if best == nil || r.CreatedAt.Before(best.CreatedAt) || (r.CreatedAt.Equal(best.CreatedAt) && r.ID < best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil, notFound("chat room")
	}
	cp := *best
	return &cp, nil
}

func (s *RoomStore) update(roomID, op string, apply func(*models.ChatRoom)) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault(op); err != nil {
		return err
	}
	r, ok := s.t.rooms[roomID]
	if !ok {
		return notFound("chat room")
	}
	apply(r)
	return nil
}

func (s *RoomStore) UpdateLink(ctx context.Context, roomID string, tripID, applicationID *string) error {
	return s.update(roomID, "rooms.update_link", func(r *models.ChatRoom) {
		r.TripID = cloneString(tripID)
		r.ApplicationID = cloneString(applicationID)
		r.IsClosed = false
		r.ClosedAt = nil
	})
}

func (s *RoomStore) MarkGroup(ctx context.Context, roomID, tripID string) error {
	return s.update(roomID, "rooms.mark_group", func(r *models.ChatRoom) {
		r.TripID = &tripID
		r.IsGroup = true
		r.IsPrivate = false
	})
}

func (s *RoomStore) Rename(ctx context.Context, roomID, name string) error {
	return s.update(roomID, "rooms.rename", func(r *models.ChatRoom) { r.Name = name })
}

func (s *RoomStore) Close(ctx context.Context, roomID string, at time.Time) error {
	return s.update(roomID, "rooms.close", func(r *models.ChatRoom) {
		r.IsClosed = true
		r.ClosedAt = &at
	})
}

func (s *RoomStore) Delete(ctx context.Context, roomID string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("rooms.delete"); err != nil {
		return err
	}
	if _, ok := s.t.rooms[roomID]; !ok {
		return notFound("chat room")
	}
	delete(s.t.rooms, roomID)
	return nil
}

func (s *RoomStore) ListForUser(ctx context.Context, userID string) ([]*models.ChatRoom, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.ChatRoom
	for _, m := range s.t.roomMembers {
		if m.UserID != userID {
			continue
		}
		if r, ok := s.t.rooms[m.RoomID]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// RoomMemberStore holds room memberships. The "room_members.add_bulk"
// fault fails only multi-row inserts.
type RoomMemberStore struct{ t *tables }

func (s *RoomMemberStore) Add(ctx context.Context, members ...*models.ChatMember) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if len(members) > 1 {
		if err := s.t.fault("room_members.add_bulk"); err != nil {
			return err
		}
	}
	if err := s.t.fault("room_members.add"); err != nil {
		return err
	}
	for _, add := range members {
		for _, m := range s.t.roomMembers {
			if m.RoomID == add.RoomID && m.UserID == add.UserID {
				return fmt.Errorf("failed to add chat members: %w", repository.ErrDuplicate)
			}
		}
	}
	for _, add := range members {
		cp := *add
		s.t.roomMembers = append(s.t.roomMembers, &cp)
	}
	return nil
}

func (s *RoomMemberStore) List(ctx context.Context, roomID string) ([]*models.ChatMember, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	if err := s.t.fault("room_members.list"); err != nil {
		return nil, err
	}
	var out []*models.ChatMember
	for _, m := range s.t.roomMembers {
		if m.RoomID == roomID {
			cp := *m
			cp.UserName = s.t.userName(m.UserID)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *RoomMemberStore) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for _, m := range s.t.roomMembers {
		if m.RoomID == roomID && m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *RoomMemberStore) ListRoomIDs(ctx context.Context, userID string) ([]string, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var ids []string
	for _, m := range s.t.roomMembers {
		if m.UserID == userID {
			ids = append(ids, m.RoomID)
		}
	}
	return ids, nil
}

func (s *RoomMemberStore) Remove(ctx context.Context, roomID, userID string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.roomMembers = keepRows(s.t.roomMembers, func(m *models.ChatMember) bool {
		return !(m.RoomID == roomID && m.UserID == userID)
	})
	return nil
}

func (s *RoomMemberStore) RemoveAll(ctx context.Context, roomID string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("room_members.remove_all"); err != nil {
		return err
	}
	s.t.roomMembers = keepRows(s.t.roomMembers, func(m *models.ChatMember) bool { return m.RoomID != roomID })
	return nil
}

// MessageStore holds chat messages in insertion order
type MessageStore struct{ t *tables }

func (s *MessageStore) Create(ctx context.Context, msg *models.ChatMessage) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("messages.create"); err != nil {
		return err
	}
	cp := *msg
	s.t.messages = append(s.t.messages, &cp)
	return nil
}

func (s *MessageStore) GetByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	for _, m := range s.t.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, notFound("message")
}

func (s *MessageStore) ListByRoom(ctx context.Context, roomID string, limit int) ([]*models.ChatMessage, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	var out []*models.ChatMessage
	for _, m := range s.t.messages {
		if m.RoomID == roomID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MessageStore) LastByRoom(ctx context.Context, roomID string) (*models.ChatMessage, error) {
	msgs, _ := s.ListByRoom(ctx, roomID, 1)
	if len(msgs) == 0 {
		return nil, notFound("message")
	}
	return msgs[0], nil
}

func (s *MessageStore) ClearFile(ctx context.Context, id, content string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	for _, m := range s.t.messages {
		if m.ID == id {
			m.Content = content
			m.IsFile = false
			m.FileURL, m.FilePath, m.FileName, m.FileType, m.FileSize = nil, nil, nil, nil, nil
			return nil
		}
	}
	return notFound("message")
}

func (s *MessageStore) DeleteByRoom(ctx context.Context, roomID string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("messages.delete_by_room"); err != nil {
		return err
	}
	s.t.messages = keepRows(s.t.messages, func(m *models.ChatMessage) bool { return m.RoomID != roomID })
	return nil
}

func (s *MessageStore) FileStats(ctx context.Context, roomID string) ([]models.FileStat, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	byType := make(map[string]*models.FileStat)
	for _, m := range s.t.messages {
		if m.RoomID != roomID || !m.IsFile {
			continue
		}
		fileType := "unknown"
		if m.FileType != nil {
			fileType = *m.FileType
		}
		st, ok := byType[fileType]
		if !ok {
			st = &models.FileStat{FileType: fileType}
			byType[fileType] = st
		}
		st.FileCount++
		if m.FileSize != nil {
			st.TotalBytes += *m.FileSize
		}
	}
	stats := make([]models.FileStat, 0, len(byType))
	for _, st := range byType {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].FileType < stats[j].FileType })
	return stats, nil
}

// PairStore is the direct conversation index
type PairStore struct{ t *tables }

func (s *PairStore) Get(ctx context.Context, pair models.UserPair) (string, error) {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	roomID, ok := s.t.pairs[pair]
	if !ok {
		return "", notFound("direct conversation")
	}
	return roomID, nil
}

func (s *PairStore) Put(ctx context.Context, pair models.UserPair, roomID string) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if err := s.t.fault("pairs.put"); err != nil {
		return err
	}
	s.t.pairs[pair] = roomID
	return nil
}

// RoomCount returns the number of stored rooms
func (s *Store) RoomCount() int {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	return len(s.t.rooms)
}

// MessageCount returns the number of stored messages in a room
func (s *Store) MessageCount(roomID string) int {
	s.t.mu.RLock()
	defer s.t.mu.RUnlock()
	n := 0
	for _, m := range s.t.messages {
		if m.RoomID == roomID {
			n++
		}
	}
	return n
}
