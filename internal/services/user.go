package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"trip-share-backend/internal/identity"
	"trip-share-backend/internal/models"
	"trip-share-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Token types carried in the "type" claim
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

const (
	minPasswordLength = 8
	maxAvatarSize     = 5 << 20
	avatarsBucket     = "avatars"
)

var avatarTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ErrTokenRevoked is returned when a refresh token was already used
var ErrTokenRevoked = errors.New("refresh token revoked")

// Mailer sends transactional e-mail
type Mailer interface {
	SendConfirmation(ctx context.Context, to, name, link string) error
	SendInvite(ctx context.Context, to, inviterName, roomName, link string) error
}

// TokenRegistry remembers issued refresh tokens so each can be used once
type TokenRegistry interface {
	Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	Consume(ctx context.Context, tokenID string) (string, error)
}

// UserOptions configures the identity provider
type UserOptions struct {
	JWTSecret        string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ConfirmURL       string
	DefaultEstUserID *int
	AvatarsBucket    string
	Mailer           Mailer
	Tokens           TokenRegistry
}

// TokenPair is the result of a successful login
type TokenPair struct {
	Access    string       `json:"access"`
	Refresh   string       `json:"refresh"`
	ExpiresIn int64        `json:"expires_in"`
	User      *models.User `json:"user"`
}

// RegisterInput is the registration form
type RegisterInput struct {
	Email           string
	Password        string
	FirstName       string
	LastName        string
	DocumentNumber  string
	Sex             string
	BirthDate       models.Date
	DocumentPayload string
}

// ProfileInput holds profile fields to change; empty fields are kept
type ProfileInput struct {
	Email          string
	FirstName      string
	LastName       string
	DocumentNumber string
	Sex            string
	BirthDate      *models.Date
}

// FileUpload is an uploaded file read from a multipart form
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UserService handles registration, login and profiles
type UserService struct {
	users   UserStore
	reports ReportStore
	storage ObjectStorage
	opts    UserOptions
	now     func() time.Time
}

// NewUserService creates a new user service
func NewUserService(st Stores, storage ObjectStorage, opts UserOptions) *UserService {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	if opts.AvatarsBucket == "" {
		opts.AvatarsBucket = avatarsBucket
	}
	return &UserService{
		users:   st.Users,
		reports: st.Reports,
		storage: storage,
		opts:    opts,
		now:     time.Now,
	}
}

// Register checks the form against the identity document payload and creates
// an unconfirmed account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, validationError("password", "password must be at least %d characters", minPasswordLength)
	}
	if strings.TrimSpace(in.DocumentPayload) == "" {
		return nil, validationError("document_payload", "document_payload is required")
	}

	profile := identity.Profile{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Sex:            strings.TrimSpace(in.Sex),
		DocumentNumber: strings.TrimSpace(in.DocumentNumber),
		BirthDate:      in.BirthDate,
	}
	doc, age, err := identity.Verify(profile, in.DocumentPayload, s.now().UTC())
	if err != nil {
		return nil, documentError(err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, businessError("email is already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, upstream("failed to check email", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, upstream("failed to hash password", err)
	}

	user := &models.User{
		ID:                uuid.New().String(),
		Email:             email,
		PasswordHash:      string(hash),
		FirstName:         profile.FirstName,
		LastName:          profile.LastName,
		DocumentNumber:    doc.DocumentNumber,
		Sex:               profile.Sex,
		BirthDate:         doc.BirthDate,
		Age:               age,
		EstUserID:         s.opts.DefaultEstUserID,
		ConfirmationToken: uuid.New().String(),
		CreatedAt:         s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, businessError("email or document is already registered")
		}
		return nil, upstream("failed to create user", err)
	}

	if s.opts.Mailer != nil {
		link := s.opts.ConfirmURL + "?token=" + user.ConfirmationToken
		bestEffort("confirmation_email", s.opts.Mailer.SendConfirmation(ctx, user.Email, user.FullName(), link))
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	return user, nil
}

func documentError(err error) error {
	var (
		formatErr   *identity.FormatError
		dateErr     *identity.DateError
		mismatchErr *identity.MismatchError
		underageErr *identity.UnderageError
	)
	switch {
	case errors.As(err, &formatErr), errors.As(err, &dateErr):
		return &Error{Kind: KindValidation, Field: "document_payload", Message: err.Error(), Err: err}
	case errors.As(err, &mismatchErr):
		return &Error{Kind: KindBusinessRule, Field: mismatchErr.Field, Message: err.Error(), Err: err}
	case errors.As(err, &underageErr):
		return &Error{Kind: KindBusinessRule, Message: err.Error(), Err: err}
	}
	return upstream("failed to verify document", err)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", validationError("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", validationError("email", "email is not valid")
	}
	return email, nil
}

// Login checks the credentials and issues an access and a refresh token
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, businessError("invalid credentials")
		}
		return nil, upstream("failed to get user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, businessError("invalid credentials")
	}
	if !user.EmailConfirmed {
		return nil, businessError("email not confirmed")
	}
	if err := s.checkSuspension(ctx, user.ID); err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	pair.User = user

	log.Info().Str("user_id", user.ID).Msg("User logged in")
	return pair, nil
}

func (s *UserService) checkSuspension(ctx context.Context, userID string) error {
	susp, err := s.reports.ActiveSuspension(ctx, userID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return upstream("failed to check suspension", err)
	}
	if susp.IsPermanent || susp.ExpiresAt == nil {
		return forbidden("account is suspended")
	}
	return forbidden("account is suspended until %s", susp.ExpiresAt.Format(time.RFC3339))
}

// Refresh exchanges a refresh token for a new token pair
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parseToken(refreshToken, TokenRefresh)
	if err != nil {
		return nil, &Error{Kind: KindAuthorization, Message: "invalid refresh token", Err: err}
	}
	userID, _ := claims["user_id"].(string)

	if s.opts.Tokens != nil {
		jti, _ := claims["jti"].(string)
		owner, err := s.opts.Tokens.Consume(ctx, jti)
		if err != nil {
			if errors.Is(err, ErrTokenRevoked) {
				return nil, &Error{Kind: KindAuthorization, Message: "refresh token was already used", Err: err}
			}
			return nil, upstream("failed to check refresh token", err)
		}
		if owner != userID {
			return nil, forbidden("invalid refresh token")
		}
	}
	if err := s.checkSuspension(ctx, userID); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, userID)
}

func (s *UserService) issueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	now := s.now()
	access, err := s.signToken(jwt.MapClaims{
		"user_id": userID,
		"type":    TokenAccess,
		"exp":     now.Add(s.opts.AccessTTL).Unix(),
		"iat":     now.Unix(),
	})
	if err != nil {
		return nil, upstream("failed to sign token", err)
	}

	jti := uuid.New().String()
	refresh, err := s.signToken(jwt.MapClaims{
		"user_id": userID,
		"type":    TokenRefresh,
		"jti":     jti,
		"exp":     now.Add(s.opts.RefreshTTL).Unix(),
		"iat":     now.Unix(),
	})
	if err != nil {
		return nil, upstream("failed to sign token", err)
	}
	if s.opts.Tokens != nil {
		if err := s.opts.Tokens.Save(ctx, jti, userID, s.opts.RefreshTTL); err != nil {
			return nil, upstream("failed to store refresh token", err)
		}
	}

	return &TokenPair{
		Access:    access,
		Refresh:   refresh,
		ExpiresIn: int64(s.opts.AccessTTL.Seconds()),
	}, nil
}

func (s *UserService) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (s *UserService) parseToken(tokenString, wantType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if typ, _ := claims["type"].(string); typ != wantType {
		return nil, fmt.Errorf("expected %s token", wantType)
	}
	if id, _ := claims["user_id"].(string); id == "" {
		return nil, fmt.Errorf("user_id not found in token")
	}
	return claims, nil
}

// ValidateAccessToken validates an access token and returns the user ID
func (s *UserService) ValidateAccessToken(tokenString string) (string, error) {
	claims, err := s.parseToken(tokenString, TokenAccess)
	if err != nil {
		return "", err
	}
	return claims["user_id"].(string), nil
}

// ConfirmEmail marks the account holding token as confirmed
func (s *UserService) ConfirmEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, validationError("token", "token is required")
	}
	user, err := s.users.ConfirmEmail(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationError("token", "invalid or expired confirmation token")
		}
		return nil, upstream("failed to confirm email", err)
	}
	log.Info().Str("user_id", user.ID).Msg("Email confirmed")
	return user, nil
}

// GetProfile returns the profile of a user
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, validationError("user_id", "user_id is required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user", err)
		}
		return nil, upstream("failed to get user", err)
	}
	return user, nil
}

// UpsertProfile overwrites the non-empty profile fields of the caller
func (s *UserService) UpsertProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Email != "" {
		email, err := normalizeEmail(in.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&user.FirstName, in.FirstName)
	set(&user.LastName, in.LastName)
	set(&user.DocumentNumber, in.DocumentNumber)
	set(&user.Sex, in.Sex)
	if in.BirthDate != nil {
		age := identity.Age(*in.BirthDate, s.now().UTC())
		if age < 18 {
			return nil, businessError("applicant must be at least 18 years old")
		}
		user.BirthDate = *in.BirthDate
		user.Age = age
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, businessError("email or document is already registered")
		}
		return nil, upstream("failed to update profile", err)
	}
	return user, nil
}

// UploadAvatar stores an image as the avatar of userID and returns its URL
func (s *UserService) UploadAvatar(ctx context.Context, userID string, file FileUpload) (string, error) {
	ext, ok := avatarTypes[file.ContentType]
	if !ok {
		return "", validationError("file", "avatar must be a jpeg, png, gif or webp image")
	}
	if file.Size <= 0 {
		return "", validationError("file", "file is empty")
	}
	if file.Size > maxAvatarSize {
		return "", validationError("file", "avatar must be at most 5 MB")
	}
	if s.storage == nil {
		return "", upstream("object storage is not configured", nil)
	}

	key := fmt.Sprintf("%s/%s.%s", userID, uuid.New().String(), ext)
	if err := s.storage.Put(ctx, s.opts.AvatarsBucket, key, file.ContentType, file.Body, file.Size); err != nil {
		return "", upstream("failed to upload avatar", err)
	}
	url := s.storage.PublicURL(s.opts.AvatarsBucket, key)
	if err := s.users.UpdateAvatarURL(ctx, userID, url); err != nil {
		bestEffort("avatar_cleanup", s.storage.Delete(ctx, s.opts.AvatarsBucket, key))
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFound("user", err)
		}
		return "", upstream("failed to save avatar", err)
	}

	log.Info().Str("user_id", userID).Str("key", key).Msg("Avatar uploaded")
	return url, nil
}

// UpdatePushToken stores the APNs device token; an empty token clears it
func (s *UserService) UpdatePushToken(ctx context.Context, userID, token string) error {
	var value *string
	if token = strings.TrimSpace(token); token != "" {
		value = &token
	}
	if err := s.users.UpdatePushToken(ctx, userID, value); err != nil {
		return upstream("failed to update push token", err)
	}
	return nil
}
