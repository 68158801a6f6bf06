package model

import (
	"time"
)

// Session field bounds, matching what the store enforces.
const (
	TitleMaxLength         = 100
	ChatMessageMaxLength   = 2000
	DurationMinutesMin     = 15
	DurationMinutesMax     = 120
	DefaultDurationMinutes = 30
	DefaultMaxParticipants = 20
	MaxParticipantsFloor   = 1
)

type Session struct {
	ID              string        `db:"id" json:"id"`
	Title           string        `db:"title" json:"title"`
	Description     string        `db:"description" json:"description"`
	HostID          string        `db:"host_id" json:"hostId"`
	IdeaID          string        `db:"idea_id" json:"ideaId"`
	ScheduledTime   time.Time     `db:"scheduled_time" json:"scheduledTime"`
	DurationMinutes int           `db:"duration_minutes" json:"durationMinutes"`
	Status          SessionStatus `db:"status" json:"status"`
	MaxParticipants int           `db:"max_participants" json:"maxParticipants"`
	RecordingURL    *string       `db:"recording_url" json:"recordingUrl,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`

	// Loaded alongside the row; never written through this struct.
	Participants []Participant `db:"-" json:"participants"`
	ChatMessages []ChatMessage `db:"-" json:"chatMessages,omitempty"`
}

// HasParticipant reports whether userID already occupies a seat.
func (s *Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Session) Full() bool {
	return len(s.Participants) >= s.MaxParticipants
}

type Participant struct {
	SessionID string    `db:"session_id" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`
}

// ChatMessage is one chat log entry. Seq is assigned by the store at
// insert and is the log's only ordering authority; timestamps can tie or
// invert under concurrent posters.
type ChatMessage struct {
	ID        string    `db:"id" json:"id"`
	Seq       int64     `db:"seq" json:"-"`
	SessionID string    `db:"session_id" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	Message   string    `db:"message" json:"message"`
	Timestamp time.Time `db:"created_at" json:"timestamp"`
}

type CreateSessionParams struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	IdeaID          string    `json:"idea"`
	ScheduledTime   time.Time `json:"scheduledTime"`
	DurationMinutes int       `json:"duration"`
	MaxParticipants int       `json:"maxParticipants"`
}

// UpdateSessionParams carries the editable fields of a scheduled session.
// Nil means "leave unchanged". Immutable fields (host, idea, status,
// participants, chat) have no representation here on purpose.
type UpdateSessionParams struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	ScheduledTime   *time.Time `json:"scheduledTime"`
	DurationMinutes *int       `json:"duration"`
	MaxParticipants *int       `json:"maxParticipants"`
}

func (p UpdateSessionParams) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ScheduledTime == nil &&
		p.DurationMinutes == nil && p.MaxParticipants == nil
}

// SessionChange is the write-set a mutator hands back to the store.
// Only non-nil members are persisted; the store applies them in the same
// transaction that loaded the snapshot the mutator saw.
type SessionChange struct {
	Status         *SessionStatus
	RecordingURL   *string
	Fields         *UpdateSessionParams
	AddParticipant *Participant
	AddChatMessage *ChatMessage
}

// SessionFilter narrows List results.
type SessionFilter struct {
	Status   *SessionStatus
	IdeaID   *string
	Upcoming bool
}

// UserRef is the resolved public view of a user on session reads.
type UserRef struct {
	ID       string  `db:"id" json:"id"`
	Username string  `db:"username" json:"username"`
	Avatar   *string `db:"avatar" json:"avatar,omitempty"`
}

// IdeaRef is the resolved public view of the linked idea.
type IdeaRef struct {
	ID          string  `db:"id" json:"id"`
	Title       string  `db:"title" json:"title"`
	Description *string `db:"description" json:"description,omitempty"`
}

// SessionView is a session with host and idea references resolved, as
// returned by list and detail reads.
type SessionView struct {
	Session
	Host UserRef `json:"host"`
	Idea IdeaRef `json:"idea"`

	// Detail reads only.
	ParticipantUsers []UserRef `json:"participantUsers,omitempty"`
}
