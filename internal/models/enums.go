package models

// TripStatus is the date-derived phase of a trip
type TripStatus string

const (
	TripUpcoming  TripStatus = "upcoming"
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
)

// ApplicationStatus is the state of a join request
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Terminal reports whether no further transition is allowed
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationAccepted || s == ApplicationRejected
}

// ChatRole is the role of a member in a room or a trip
type ChatRole string

const (
	RoleOwner  ChatRole = "owner"
	RoleMember ChatRole = "member"
)

// HistoryRole is the role recorded in trip history
type HistoryRole string

const (
	HistoryOrganizer HistoryRole = "organizer"
	HistoryMember    HistoryRole = "member"
)

// HistoryRoleFor maps a group room role to the history role
func HistoryRoleFor(role ChatRole) HistoryRole {
	if role == RoleOwner {
		return HistoryOrganizer
	}
	return HistoryMember
}

// UserPair is an order-independent pair of user ids
type UserPair struct {
	Low  string
	High string
}

// NewUserPair orders the two ids lexicographically
func NewUserPair(a, b string) UserPair {
	if a > b {
		a, b = b, a
	}
	return UserPair{Low: a, High: b}
}
