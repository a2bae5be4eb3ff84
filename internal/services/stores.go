package services

import (
	"context"
	"time"

	"trip-share-backend/internal/models"
)

// UserStore persists user profiles
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ConfirmEmail(ctx context.Context, token string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePushToken(ctx context.Context, userID string, token *string) error
	UpdateAvatarURL(ctx context.Context, userID, url string) error
}

// TripStore persists trips
type TripStore interface {
	Create(ctx context.Context, trip *models.Trip) error
	GetByID(ctx context.Context, id string) (*models.Trip, error)
	List(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error)
	ListByMember(ctx context.Context, userID string) ([]*models.Trip, error)
	ListNotCompleted(ctx context.Context) ([]*models.Trip, error)
	NameExists(ctx context.Context, name, excludeID string) (bool, error)
	Update(ctx context.Context, trip *models.Trip) error
	UpdateStatus(ctx context.Context, id string, status models.TripStatus) error
	Delete(ctx context.Context, id string) error
}

// TripMemberStore persists trip participants
type TripMemberStore interface {
	Add(ctx context.Context, member *models.TripMember) error
	Count(ctx context.Context, tripID string) (int, error)
	Get(ctx context.Context, tripID, userID string) (*models.TripMember, error)
	ListByTrip(ctx context.Context, tripID string) ([]*models.TripMember, error)
	Remove(ctx context.Context, tripID, userID string) error
	RemoveAll(ctx context.Context, tripID string) error
}

// ApplicationStore persists join requests
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	FindPending(ctx context.Context, tripID, applicantID string) (*models.Application, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, at time.Time) error
	ListByApplicant(ctx context.Context, applicantID string) ([]*models.Application, error)
	ListByTrip(ctx context.Context, tripID string) ([]*models.Application, error)
	ListPendingByTrip(ctx context.Context, tripID string) ([]*models.Application, error)
}

// ChatRoomStore persists chat rooms
type ChatRoomStore interface {
	Create(ctx context.Context, room *models.ChatRoom) error
	CreateMinimal(ctx context.Context, room *models.ChatRoom) error
	GetByID(ctx context.Context, id string) (*models.ChatRoom, error)
	FindGroupByTrip(ctx context.Context, tripID string) (*models.ChatRoom, error)
	FindByName(ctx context.Context, name string) (*models.ChatRoom, error)
	FindByApplication(ctx context.Context, applicationID string) (*models.ChatRoom, error)
	UpdateLink(ctx context.Context, roomID string, tripID, applicationID *string) error
	MarkGroup(ctx context.Context, roomID, tripID string) error
	Rename(ctx context.Context, roomID, name string) error
	Close(ctx context.Context, roomID string, at time.Time) error
	Delete(ctx context.Context, roomID string) error
	ListForUser(ctx context.Context, userID string) ([]*models.ChatRoom, error)
}

// ChatMemberStore persists room memberships
type ChatMemberStore interface {
	Add(ctx context.Context, members ...*models.ChatMember) error
	List(ctx context.Context, roomID string) ([]*models.ChatMember, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	ListRoomIDs(ctx context.Context, userID string) ([]string, error)
	Remove(ctx context.Context, roomID, userID string) error
	RemoveAll(ctx context.Context, roomID string) error
}

// ChatMessageStore persists chat messages
type ChatMessageStore interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	GetByID(ctx context.Context, id string) (*models.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*models.ChatMessage, error)
	LastByRoom(ctx context.Context, roomID string) (*models.ChatMessage, error)
	ClearFile(ctx context.Context, id, content string) error
	DeleteByRoom(ctx context.Context, roomID string) error
	FileStats(ctx context.Context, roomID string) ([]models.FileStat, error)
}

// PairStore is the direct conversation index
type PairStore interface {
	Get(ctx context.Context, pair models.UserPair) (string, error)
	Put(ctx context.Context, pair models.UserPair, roomID string) error
}

// TripHistoryStore persists the append-only history log
type TripHistoryStore interface {
	ListUserIDs(ctx context.Context, tripID string) ([]string, error)
	Create(ctx context.Context, entry *models.TripHistoryEntry) error
	Get(ctx context.Context, tripID, userID string) (*models.TripHistoryEntry, error)
	ListByUser(ctx context.Context, userID string) ([]*models.TripHistoryEntry, error)
	Rate(ctx context.Context, tripID, userID string, rating int, review *string) error
}

// ReviewStore persists user reviews
type ReviewStore interface {
	Upsert(ctx context.Context, review *models.Review) error
	ListForUser(ctx context.Context, userID string) ([]*models.Review, error)
}

// ReportStore persists reports and reads suspensions
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	ListMade(ctx context.Context, userID string) ([]*models.Report, error)
	ListReceived(ctx context.Context, userID string) ([]*models.Report, error)
	ActiveSuspension(ctx context.Context, userID string, now time.Time) (*models.Suspension, error)
}

// NotificationStore persists in-app notifications
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// Stores bundles every store the services need
type Stores struct {
	Users         UserStore
	Trips         TripStore
	TripMembers   TripMemberStore
	Applications  ApplicationStore
	Rooms         ChatRoomStore
	RoomMembers   ChatMemberStore
	Messages      ChatMessageStore
	Pairs         PairStore
	History       TripHistoryStore
	Reviews       ReviewStore
	Reports       ReportStore
	Notifications NotificationStore
}
