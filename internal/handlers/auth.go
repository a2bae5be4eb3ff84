package handlers

import (
	"net/http"
	"net/url"

	"trip-share-backend/internal/middleware"
	"trip-share-backend/internal/models"
	"trip-share-backend/internal/services"
)

const maxAvatarBytes = 5 << 20

// AuthHandler handles registration, login and the caller's profile
type AuthHandler struct {
	userService *services.UserService
	// confirmRedirect is the frontend page a confirmation link lands on
	confirmRedirect string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *services.UserService, confirmRedirect string) *AuthHandler {
	return &AuthHandler{userService: userService, confirmRedirect: confirmRedirect}
}

type registerRequest struct {
	Email           string       `json:"email" validate:"required,email"`
	Password        string       `json:"password" validate:"required,min=8"`
	FirstName       string       `json:"first_name" validate:"required"`
	LastName        string       `json:"last_name" validate:"required"`
	DocumentNumber  string       `json:"document_number" validate:"required"`
	Sex             string       `json:"sex" validate:"required"`
	BirthDate       *models.Date `json:"birth_date" validate:"required"`
	DocumentPayload string       `json:"document_payload" validate:"required"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid register request")
		return
	}
	if req.BirthDate.IsZero() {
		respondServiceError(w, r, invalid("birth_date", "birth_date is required"), "Invalid register request")
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		DocumentNumber:  req.DocumentNumber,
		Sex:             req.Sex,
		BirthDate:       *req.BirthDate,
		DocumentPayload: req.DocumentPayload,
	})
	if err != nil {
		respondServiceError(w, r, err, "Failed to register user")
		return
	}

	respondOK(w, envelope{
		"id":              user.ID,
		"email":           user.Email,
		"first_name":      user.FirstName,
		"last_name":       user.LastName,
		"document_number": user.DocumentNumber,
		"sex":             user.Sex,
		"birth_date":      user.BirthDate,
		"age":             user.Age,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid login request")
		return
	}

	pair, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, err, "Failed to login")
		return
	}
	respondTokens(w, pair)
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid refresh request")
		return
	}

	pair, err := h.userService.Refresh(r.Context(), req.Refresh)
	if err != nil {
		respondServiceError(w, r, err, "Failed to refresh tokens")
		return
	}
	respondTokens(w, pair)
}

func respondTokens(w http.ResponseWriter, pair *services.TokenPair) {
	respondOK(w, envelope{
		"access":     pair.Access,
		"refresh":    pair.Refresh,
		"expires_in": pair.ExpiresIn,
		"user":       pair.User,
	})
}

// Confirm handles GET /auth/confirm?token=
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	_, err := h.userService.ConfirmEmail(r.Context(), r.URL.Query().Get("token"))
	if h.confirmRedirect == "" {
		if err != nil {
			respondServiceError(w, r, err, "Failed to confirm email")
			return
		}
		respondOK(w, nil)
		return
	}

	q := url.Values{}
	if err != nil {
		q.Set("status", "error")
		q.Set("error", err.Error())
	} else {
		q.Set("status", "success")
	}
	http.Redirect(w, r, h.confirmRedirect+"?"+q.Encode(), http.StatusFound)
}

type upsertProfileRequest struct {
	UserID         string       `json:"user_id"`
	Email          string       `json:"email" validate:"omitempty,email"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	DocumentNumber string       `json:"document_number"`
	Sex            string       `json:"sex"`
	BirthDate      *models.Date `json:"birth_date"`
}

// UpsertProfile handles POST /auth/upsert_profile
func (h *AuthHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req upsertProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid profile request")
		return
	}
	userID, err := actingUser(r, req.UserID, "user_id")
	if err != nil {
		respondServiceError(w, r, err, "Profile update for another user")
		return
	}
	if req.BirthDate != nil && req.BirthDate.IsZero() {
		req.BirthDate = nil
	}

	user, err := h.userService.UpsertProfile(r.Context(), userID, services.ProfileInput{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DocumentNumber: req.DocumentNumber,
		Sex:            req.Sex,
		BirthDate:      req.BirthDate,
	})
	if err != nil {
		respondServiceError(w, r, err, "Failed to update profile")
		return
	}
	respondOK(w, envelope{"user": user})
}

// GetProfile handles GET /profile/user?user_id=; the caller by default
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = middleware.GetUserID(r.Context())
	}

	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to get profile")
		return
	}
	respondOK(w, envelope{"user": user})
}

// UploadAvatar handles POST /profile/avatar (multipart field "file")
func (h *AuthHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	upload, closeFile, err := formFile(r, "file", maxAvatarBytes)
	if err != nil {
		respondServiceError(w, r, err, "Invalid avatar upload")
		return
	}
	defer closeFile()

	avatarURL, err := h.userService.UploadAvatar(r.Context(), userID, upload)
	if err != nil {
		respondServiceError(w, r, err, "Failed to upload avatar")
		return
	}
	respondOK(w, envelope{"avatar_url": avatarURL})
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

// UpdatePushToken handles POST /profile/push-token. An empty token clears it.
func (h *AuthHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid push token request")
		return
	}

	if err := h.userService.UpdatePushToken(r.Context(), middleware.GetUserID(r.Context()), req.Token); err != nil {
		respondServiceError(w, r, err, "Failed to update push token")
		return
	}
	respondOK(w, nil)
}
