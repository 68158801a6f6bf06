package model

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusLive      SessionStatus = "live"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further status transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// Joinable reports whether new participants may be admitted.
func (s SessionStatus) Joinable() bool {
	return s == SessionStatusScheduled || s == SessionStatusLive
}

func ValidSessionStatuses() []string {
	return []string{
		string(SessionStatusScheduled),
		string(SessionStatusLive),
		string(SessionStatusCompleted),
		string(SessionStatusCancelled),
	}
}

type UserRole string

const (
	UserRoleMember  UserRole = "member"
	UserRoleFounder UserRole = "founder"
	UserRoleAdmin   UserRole = "admin"
)

// Elevated reports whether the role bypasses ownership checks.
func (r UserRole) Elevated() bool {
	return r == UserRoleAdmin
}
