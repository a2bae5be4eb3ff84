package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxFileSize         = 10 << 20
	maxMessageLength    = 4000
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	chatFilesBucket     = "chat-files"
	deletedFileContent  = "[Archivo eliminado]"
)

var chatFileTypes = map[string]string{
	"image/jpeg":         "jpg",
	"image/png":          "png",
	"image/gif":          "gif",
	"image/webp":         "webp",
	"application/pdf":    "pdf",
	"text/plain":         "txt",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

// ChatOptions configures the chat service collaborators; all are optional
type ChatOptions struct {
	FilesBucket string
	InviteURL   string
	Mailer      Mailer
	Typing      TypingIndicator
}

// ChatService handles messages, files and room membership queries
type ChatService struct {
	rooms    ChatRoomStore
	members  ChatMemberStore
	messages ChatMessageStore
	users    UserStore
	storage  ObjectStorage
	hub      Publisher
	opts     ChatOptions
	now      func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(st Stores, storage ObjectStorage, hub Publisher, opts ChatOptions) *ChatService {
	if opts.FilesBucket == "" {
		opts.FilesBucket = chatFilesBucket
	}
	return &ChatService{
		rooms:    st.Rooms,
		members:  st.RoomMembers,
		messages: st.Messages,
		users:    st.Users,
		storage:  storage,
		hub:      hub,
		opts:     opts,
		now:      time.Now,
	}
}

// room loads roomID and checks that userID belongs to it
func (s *ChatService) room(ctx context.Context, userID, roomID string) (*models.ChatRoom, error) {
	if roomID == "" {
		return nil, validationError("room_id", "room_id is required")
	}
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("chat room", err)
		}
		return nil, upstream("failed to get chat room", err)
	}
	ok, err := s.members.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, upstream("failed to check room membership", err)
	}
	if !ok {
		return nil, forbidden("you are not a member of this chat room")
	}
	return room, nil
}

func (s *ChatService) writableRoom(ctx context.Context, userID, roomID string) (*models.ChatRoom, error) {
	room, err := s.room(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsClosed {
		return nil, businessError("chat room is closed")
	}
	return room, nil
}

// Send posts a text message to a room
func (s *ChatService) Send(ctx context.Context, userID, roomID, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("content", "content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, validationError("content", "content must be at most %d characters", maxMessageLength)
	}
	if _, err := s.writableRoom(ctx, userID, roomID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, upstream("failed to send message", err)
	}

	s.fanOut(ctx, msg)
	return msg, nil
}

// UploadFile stores a file and posts it as a message in the room
func (s *ChatService) UploadFile(ctx context.Context, userID, roomID string, file FileUpload) (*models.ChatMessage, error) {
	ext, ok := chatFileTypes[file.ContentType]
	if !ok {
		return nil, validationError("file", "file type %q is not allowed", file.ContentType)
	}
	if file.Size <= 0 {
		return nil, validationError("file", "file is empty")
	}
	if file.Size > maxFileSize {
		return nil, validationError("file", "file must be at most 10 MB")
	}
	if _, err := s.writableRoom(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, upstream("object storage is not configured", nil)
	}

	name := strings.TrimSpace(file.Name)
	if name == "" {
		name = "archivo." + ext
	}
	key := fmt.Sprintf("%s/%s.%s", userID, uuid.New().String(), ext)
	if err := s.storage.Put(ctx, s.opts.FilesBucket, key, file.ContentType, file.Body, file.Size); err != nil {
		return nil, upstream("failed to upload file", err)
	}

	url := s.storage.PublicURL(s.opts.FilesBucket, key)
	contentType, size := file.ContentType, file.Size
	msg := &models.ChatMessage{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		UserID:    userID,
		Content:   "📎 " + name,
		IsFile:    true,
		FileURL:   &url,
		FilePath:  &key,
		FileName:  &name,
		FileType:  &contentType,
		FileSize:  &size,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		bestEffort("file_cleanup", s.storage.Delete(ctx, s.opts.FilesBucket, key))
		return nil, upstream("failed to create file message", err)
	}

	log.Info().Str("room_id", roomID).Str("user_id", userID).Str("key", key).Msg("File uploaded")
	s.fanOut(ctx, msg)
	return msg, nil
}

// fanOut delivers msg to the online members of its room except the author
func (s *ChatService) fanOut(ctx context.Context, msg *models.ChatMessage) {
	if s.hub == nil {
		return
	}
	members, err := s.members.List(ctx, msg.RoomID)
	if !bestEffort("message_fanout", err) {
		return
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	broadcast(s.hub, ids, msg.UserID, WSMessage{Type: EventChatMessage, RoomID: msg.RoomID, Data: msg})
}

// ListMessages returns the latest messages of a room in chronological order,
// with application markers decoded.
func (s *ChatService) ListMessages(ctx context.Context, userID, roomID string, limit int) ([]*models.ChatMessage, error) {
	if _, err := s.room(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	messages, err := s.messages.ListByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, upstream("failed to get messages", err)
	}
	for _, m := range messages {
		if marker, ok := models.DecodeApplicationMarker(m.Content); ok {
			m.Marker = marker
		}
	}
	return nonNil(messages), nil
}

// ListRooms returns the rooms of userID with their last message
func (s *ChatService) ListRooms(ctx context.Context, userID string) ([]*models.ChatRoom, error) {
	rooms, err := s.rooms.ListForUser(ctx, userID)
	if err != nil {
		return nil, upstream("failed to get chat rooms", err)
	}
	for _, room := range rooms {
		last, err := s.messages.LastByRoom(ctx, room.ID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				bestEffort("last_message", err)
			}
			continue
		}
		if marker, ok := models.DecodeApplicationMarker(last.Content); ok {
			last.Marker = marker
		}
		room.LastMessage = last
	}
	return nonNil(rooms), nil
}

// DeleteFile removes the stored object of a file message sent by userID and
// rewrites the message as deleted.
func (s *ChatService) DeleteFile(ctx context.Context, userID, messageID string) (*models.ChatMessage, error) {
	if messageID == "" {
		return nil, validationError("message_id", "message_id is required")
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("message", err)
		}
		return nil, upstream("failed to get message", err)
	}
	if msg.UserID != userID {
		return nil, forbidden("only the sender can delete this file")
	}
	if !msg.IsFile {
		return nil, businessError("message has no file")
	}

	if msg.FilePath != nil && s.storage != nil {
		bestEffort("delete_object", s.storage.Delete(ctx, s.opts.FilesBucket, *msg.FilePath))
	}
	if err := s.messages.ClearFile(ctx, msg.ID, deletedFileContent); err != nil {
		return nil, upstream("failed to delete file", err)
	}

	msg.Content = deletedFileContent
	msg.IsFile = false
	msg.FileURL, msg.FilePath, msg.FileName, msg.FileType, msg.FileSize = nil, nil, nil, nil, nil

	log.Info().Str("message_id", msg.ID).Str("user_id", userID).Msg("File deleted")
	return msg, nil
}

// FileStats returns the file count and size per content type of a room
func (s *ChatService) FileStats(ctx context.Context, userID, roomID string) ([]models.FileStat, error) {
	if _, err := s.room(ctx, userID, roomID); err != nil {
		return nil, err
	}
	stats, err := s.messages.FileStats(ctx, roomID)
	if err != nil {
		return nil, upstream("failed to get file stats", err)
	}
	return nonNil(stats), nil
}

// Members lists the members of a room
func (s *ChatService) Members(ctx context.Context, userID, roomID string) ([]*models.ChatMember, error) {
	if _, err := s.room(ctx, userID, roomID); err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, roomID)
	if err != nil {
		return nil, upstream("failed to get room members", err)
	}
	return nonNil(members), nil
}

// Invite e-mails an invitation to join a room
func (s *ChatService) Invite(ctx context.Context, userID, roomID, email string) error {
	to, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	room, err := s.room(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if s.opts.Mailer == nil {
		return businessError("invitations are disabled")
	}

	inviter := "Un viajero"
	if u, err := s.users.GetByID(ctx, userID); err == nil {
		inviter = u.FullName()
	}
	link := s.opts.InviteURL + "?room_id=" + room.ID
	if err := s.opts.Mailer.SendInvite(ctx, to, inviter, room.Name, link); err != nil {
		return upstream("failed to send invitation", err)
	}

	log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("Invitation sent")
	return nil
}

// SetTyping records that userID started or stopped typing in a room and
// notifies the other members.
func (s *ChatService) SetTyping(ctx context.Context, userID, roomID string, typing bool) error {
	if _, err := s.room(ctx, userID, roomID); err != nil {
		return err
	}
	if s.opts.Typing != nil {
		if err := s.opts.Typing.SetTyping(ctx, roomID, userID, typing); err != nil {
			return upstream("failed to update typing state", err)
		}
	}

	members, err := s.members.List(ctx, roomID)
	if bestEffort("typing_fanout", err) {
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.UserID
		}
		broadcast(s.hub, ids, userID, WSMessage{
			Type:   EventTyping,
			RoomID: roomID,
			Data:   map[string]any{"user_id": userID, "typing": typing},
		})
	}
	return nil
}

// Typing returns the other members currently typing in a room
func (s *ChatService) Typing(ctx context.Context, userID, roomID string) ([]string, error) {
	if _, err := s.room(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if s.opts.Typing == nil {
		return []string{}, nil
	}

	members, err := s.members.List(ctx, roomID)
	if err != nil {
		return nil, upstream("failed to get room members", err)
	}
	var others []string
	for _, m := range members {
		if m.UserID != userID {
			others = append(others, m.UserID)
		}
	}
	typing, err := s.opts.Typing.Typing(ctx, roomID, others)
	if err != nil {
		return nil, upstream("failed to read typing state", err)
	}
	return nonNil(typing), nil
}
