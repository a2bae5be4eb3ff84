package models

import "time"

// User represents a registered traveller
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	DocumentNumber    string    `json:"document_number"`
	Sex               string    `json:"sex"`
	BirthDate         Date      `json:"birth_date"`
	Age               int       `json:"age"`
	EstUserID         *int      `json:"estuserid,omitempty"`
	AvatarURL         *string   `json:"avatar_url,omitempty"`
	PushToken         *string   `json:"-"`
	EmailConfirmed    bool      `json:"email_confirmed"`
	ConfirmationToken string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Trip represents a trip created by an organizer
type Trip struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Origin          string     `json:"origin"`
	Destination     string     `json:"destination"`
	Country         string     `json:"country"`
	StartDate       *Date      `json:"start_date"`
	EndDate         *Date      `json:"end_date"`
	BudgetMin       float64    `json:"budget_min"`
	BudgetMax       float64    `json:"budget_max"`
	Currency        string     `json:"currency"`
	RoomType        string     `json:"room_type"`
	MaxParticipants int        `json:"max_participants"`
	Status          TripStatus `json:"status"`
	CreatorID       string     `json:"creator_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// CurrentParticipants is filled on reads, it is not a column.
	CurrentParticipants int `json:"current_participants"`
}

// TripMember is one participant of a trip
type TripMember struct {
	TripID   string    `json:"trip_id"`
	UserID   string    `json:"user_id"`
	Role     ChatRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`

	UserName string `json:"user_name,omitempty"`
}

// Application is a join request for a trip
type Application struct {
	ID          string            `json:"id"`
	TripID      string            `json:"trip_id"`
	ApplicantID string            `json:"applicant_id"`
	Status      ApplicationStatus `json:"status"`
	Message     string            `json:"message,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	RespondedAt *time.Time        `json:"responded_at,omitempty"`

	TripName string `json:"trip_name,omitempty"`
}

// ChatRoom is either the group room of a trip or a private organizer/applicant room
type ChatRoom struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	CreatorID     string     `json:"creator_id"`
	TripID        *string    `json:"trip_id"`
	ApplicationID *string    `json:"application_id"`
	IsGroup       bool       `json:"is_group"`
	IsPrivate     bool       `json:"is_private"`
	IsClosed      bool       `json:"is_closed"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	LastMessage *ChatMessage `json:"last_message,omitempty"`
}

// ChatMember grants a user access to a room
type ChatMember struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Role     ChatRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`

	UserName string `json:"user_name,omitempty"`
}

// ChatMessage is a text, file or marker message in a room
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	IsFile    bool      `json:"is_file"`
	FileURL   *string   `json:"file_url,omitempty"`
	FilePath  *string   `json:"-"`
	FileName  *string   `json:"file_name,omitempty"`
	FileType  *string   `json:"file_type,omitempty"`
	FileSize  *int64    `json:"file_size,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Marker *ApplicationMarker `json:"marker,omitempty"`
}

// FileStat aggregates the files of one content type in a room
type FileStat struct {
	FileType   string `json:"file_type"`
	FileCount  int    `json:"file_count"`
	TotalBytes int64  `json:"total_bytes"`
}

// TripHistoryEntry is the append-only participation record of a completed trip
type TripHistoryEntry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	TripID    string      `json:"trip_id"`
	Role      HistoryRole `json:"role"`
	Status    TripStatus  `json:"status"`
	JoinedAt  time.Time   `json:"joined_at"`
	LeftAt    *time.Time  `json:"left_at,omitempty"`
	Rating    *int        `json:"rating,omitempty"`
	Review    *string     `json:"review,omitempty"`
	CreatedAt time.Time   `json:"created_at"`

	TripName string `json:"trip_name,omitempty"`
}

// Review is a rating one user leaves for another
type Review struct {
	ID             string    `json:"id"`
	ReviewerID     string    `json:"reviewer_id"`
	ReviewedUserID string    `json:"reviewed_user_id"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	ReviewerName string `json:"reviewer_name,omitempty"`
}

// Report flags a user for moderation
type Report struct {
	ID               string    `json:"id"`
	ReporterID       string    `json:"reporter_id"`
	ReportedUserID   string    `json:"reported_user_id"`
	Reason           string    `json:"reason"`
	Description      string    `json:"description"`
	EvidenceImageURL *string   `json:"evidence_image_url,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReportStats summarises the reports received by a user
type ReportStats struct {
	TotalReports     int `json:"total_reports"`
	PendingReports   int `json:"pending_reports"`
	ResolvedReports  int `json:"resolved_reports"`
	DismissedReports int `json:"dismissed_reports"`
}

// Suspension blocks a user account
type Suspension struct {
	UserID      string     `json:"user_id"`
	Reason      string     `json:"reason"`
	SuspendedAt time.Time  `json:"suspended_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IsPermanent bool       `json:"is_permanent"`
	IsActive    bool       `json:"is_active"`
	Notes       *string    `json:"notes"`
}

// Notification is an in-app notice for a user
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RefType   string    `json:"ref_type,omitempty"`
	RefID     string    `json:"ref_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// TripFilter narrows trip listings; empty fields are ignored
type TripFilter struct {
	Origin      string
	Destination string
	Country     string
	Status      TripStatus
	BudgetMin   *float64
	BudgetMax   *float64
}
