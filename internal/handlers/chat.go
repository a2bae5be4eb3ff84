package handlers

import (
	"net/http"

	"trip-share-backend/internal/middleware"
	"trip-share-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

const maxChatFileBytes = 10 << 20

// ChatHandler handles chat rooms, messages and files
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type sendMessageRequest struct {
	RoomID  string `json:"room_id" validate:"required"`
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// Send handles POST /chat/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid message request")
		return
	}
	userID, err := actingUser(r, req.UserID, "user_id")
	if err != nil {
		respondServiceError(w, r, err, "Message on behalf of another user")
		return
	}

	msg, err := h.chatService.Send(r.Context(), userID, req.RoomID, req.Content)
	if err != nil {
		respondServiceError(w, r, err, "Failed to send message")
		return
	}
	respondOK(w, envelope{"message": msg})
}

// Upload handles POST /chat/files (multipart fields "room_id" and "file")
func (h *ChatHandler) Upload(w http.ResponseWriter, r *http.Request) {
	upload, closeFile, err := formFile(r, "file", maxChatFileBytes)
	if err != nil {
		respondServiceError(w, r, err, "Invalid file upload")
		return
	}
	defer closeFile()

	msg, err := h.chatService.UploadFile(r.Context(), middleware.GetUserID(r.Context()), r.FormValue("room_id"), upload)
	if err != nil {
		respondServiceError(w, r, err, "Failed to upload file")
		return
	}
	respondOK(w, envelope{"message": msg})
}

// Rooms handles GET /chat/rooms
func (h *ChatHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.chatService.ListRooms(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to list chat rooms")
		return
	}
	respondOK(w, envelope{"rooms": rooms})
}

// Messages handles GET /chat/rooms/{room_id}/messages?limit=
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondServiceError(w, r, err, "Invalid messages request")
		return
	}

	msgs, err := h.chatService.ListMessages(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "room_id"), limit)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list messages")
		return
	}
	respondOK(w, envelope{"messages": msgs})
}

// DeleteFile handles DELETE /chat/messages/{message_id}/file
func (h *ChatHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	msg, err := h.chatService.DeleteFile(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "message_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to delete file")
		return
	}
	respondOK(w, envelope{"message": msg})
}

// FileStats handles GET /chat/rooms/{room_id}/files/stats
func (h *ChatHandler) FileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.chatService.FileStats(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "room_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to get file stats")
		return
	}
	respondOK(w, envelope{"stats": stats})
}

// Members handles GET /chat/rooms/{room_id}/members
func (h *ChatHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.chatService.Members(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "room_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to list room members")
		return
	}
	respondOK(w, envelope{"members": members})
}

type inviteRequest struct {
	RoomID string `json:"room_id" validate:"required"`
	Email  string `json:"email" validate:"required"`
}

// Invite handles POST /chat/invite
func (h *ChatHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid invite request")
		return
	}

	if err := h.chatService.Invite(r.Context(), middleware.GetUserID(r.Context()), req.RoomID, req.Email); err != nil {
		respondServiceError(w, r, err, "Failed to send invitation")
		return
	}
	respondOK(w, nil)
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

// SetTyping handles POST /chat/rooms/{room_id}/typing
func (h *ChatHandler) SetTyping(w http.ResponseWriter, r *http.Request) {
	var req typingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid typing request")
		return
	}

	if err := h.chatService.SetTyping(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "room_id"), req.Typing); err != nil {
		respondServiceError(w, r, err, "Failed to update typing state")
		return
	}
	respondOK(w, nil)
}

// Typing handles GET /chat/rooms/{room_id}/typing
func (h *ChatHandler) Typing(w http.ResponseWriter, r *http.Request) {
	ids, err := h.chatService.Typing(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "room_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to get typing users")
		return
	}
	respondOK(w, envelope{"user_ids": ids})
}
