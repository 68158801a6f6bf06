package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/ideahub/session-server-go/internal/errors"
	"github.com/ideahub/session-server-go/internal/model"
	"github.com/ideahub/session-server-go/internal/repository"
	"github.com/ideahub/session-server-go/internal/sse"
)

// EventPublisher receives exactly one event per committed mutation.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID string, event sse.Event) error
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	ideaRepo    repository.IdeaRepository
	userRepo    repository.UserRepository
	publisher   EventPublisher
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	ideaRepo repository.IdeaRepository,
	userRepo repository.UserRepository,
	publisher EventPublisher,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		ideaRepo:    ideaRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

// Create schedules a new session against an idea the principal authors.
// The idea's back-reference list is appended after the session commits;
// the two writes are separate atomic units.
func (s *SessionService) Create(ctx context.Context, user *model.User, params model.CreateSessionParams) (*model.Session, error) {
	if err := validateCreateParams(&params); err != nil {
		return nil, err
	}

	idea, err := s.ideaRepo.FindByID(ctx, params.IdeaID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if idea == nil {
		return nil, apperrors.NotFound("Idea")
	}
	if err := CanCreateSession(user, idea); err != nil {
		return nil, err
	}

	session := &model.Session{
		ID:              uuid.NewString(),
		Title:           params.Title,
		Description:     params.Description,
		HostID:          user.ID,
		IdeaID:          idea.ID,
		ScheduledTime:   params.ScheduledTime,
		DurationMinutes: params.DurationMinutes,
		Status:          model.SessionStatusScheduled,
		MaxParticipants: params.MaxParticipants,
		CreatedAt:       time.Now(),
		Participants:    []model.Participant{},
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	if err := s.ideaRepo.AppendSession(ctx, idea.ID, session.ID); err != nil {
		// The session exists either way; the dangling back-reference is
		// repaired by the next cleanup pass.
		log.Error().Err(err).
			Str("sessionId", session.ID).
			Str("ideaId", idea.ID).
			Msg("failed to append session to idea")
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("hostId", user.ID).
		Str("ideaId", idea.ID).
		Time("scheduledTime", session.ScheduledTime).
		Msg("session created")

	s.publish(ctx, session.ID, sse.EventSessionCreated, session)
	return session, nil
}

// List returns sessions matching the filter, scheduled soonest first, with
// host and idea references resolved. Served from a plain read; no
// consistency guarantee beyond the snapshot.
func (s *SessionService) List(ctx context.Context, filter model.SessionFilter) ([]model.SessionView, error) {
	sessions, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	hostIDs := make([]string, 0, len(sessions))
	ideaIDs := make([]string, 0, len(sessions))
	for _, session := range sessions {
		hostIDs = append(hostIDs, session.HostID)
		ideaIDs = append(ideaIDs, session.IdeaID)
	}

	hosts, err := s.userRepo.FindRefsByIDs(ctx, hostIDs)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	ideas, err := s.ideaRepo.FindRefsByIDs(ctx, ideaIDs)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	views := make([]model.SessionView, len(sessions))
	for i, session := range sessions {
		idea := ideas[session.IdeaID]
		idea.Description = nil // list view resolves title only
		views[i] = model.SessionView{
			Session: session,
			Host:    hosts[session.HostID],
			Idea:    idea,
		}
	}
	return views, nil
}

// Get returns one session with host, idea, participants and chat resolved.
func (s *SessionService) Get(ctx context.Context, id string) (*model.SessionView, error) {
	session, err := s.sessionRepo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	hosts, err := s.userRepo.FindRefsByIDs(ctx, []string{session.HostID})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	ideas, err := s.ideaRepo.FindRefsByIDs(ctx, []string{session.IdeaID})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	participantIDs := make([]string, len(session.Participants))
	for i, p := range session.Participants {
		participantIDs[i] = p.UserID
	}
	participantRefs, err := s.userRepo.FindRefsByIDs(ctx, participantIDs)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	view := &model.SessionView{
		Session: *session,
		Host:    hosts[session.HostID],
		Idea:    ideas[session.IdeaID],
	}
	for _, p := range session.Participants {
		if ref, ok := participantRefs[p.UserID]; ok {
			view.ParticipantUsers = append(view.ParticipantUsers, ref)
		}
	}
	return view, nil
}

// Update edits the mutable fields of a scheduled session. Host, idea,
// status, participants and chat are not expressible in the params type, so
// a payload naming them never reaches the store.
func (s *SessionService) Update(ctx context.Context, user *model.User, id string, params model.UpdateSessionParams) (*model.Session, error) {
	if params.Empty() {
		return nil, apperrors.ValidationError("No updatable fields provided")
	}
	if err := validateUpdateParams(params); err != nil {
		return nil, err
	}

	session, err := s.mutate(ctx, id, func(session *model.Session) (*model.SessionChange, error) {
		if err := CanManageSession(user, session); err != nil {
			return nil, err
		}
		if session.Status != model.SessionStatusScheduled {
			return nil, apperrors.InvalidState("Only scheduled sessions can be updated")
		}
		if params.MaxParticipants != nil && *params.MaxParticipants < len(session.Participants) {
			return nil, apperrors.InvalidInput("maxParticipants",
				"cannot be lower than the current participant count")
		}
		return &model.SessionChange{Fields: &params}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("sessionId", id).Str("userId", user.ID).Msg("session updated")
	s.publish(ctx, id, sse.EventSessionUpdated, session)
	return session, nil
}

// Join admits the principal. Status, duplicate and capacity checks run
// against the locked row, so concurrent joins on the last open seat cannot
// both succeed.
func (s *SessionService) Join(ctx context.Context, user *model.User, id string) (*model.Session, error) {
	session, err := s.mutate(ctx, id, func(session *model.Session) (*model.SessionChange, error) {
		if !session.Status.Joinable() {
			return nil, apperrors.SessionNotJoinable()
		}
		if session.HasParticipant(user.ID) {
			return nil, apperrors.AlreadyJoined()
		}
		if session.Full() {
			return nil, apperrors.SessionFull()
		}
		return &model.SessionChange{
			AddParticipant: &model.Participant{
				UserID:   user.ID,
				JoinedAt: time.Now(),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", id).
		Str("userId", user.ID).
		Int("participants", len(session.Participants)).
		Msg("participant joined")

	s.publish(ctx, id, sse.EventSessionJoined, session)
	return session, nil
}

// Cancel moves a scheduled session to cancelled. Terminal; a second cancel
// is INVALID_STATE, not a no-op.
func (s *SessionService) Cancel(ctx context.Context, user *model.User, id string) (*model.Session, error) {
	session, err := s.mutate(ctx, id, func(session *model.Session) (*model.SessionChange, error) {
		if err := CanManageSession(user, session); err != nil {
			return nil, err
		}
		if session.Status != model.SessionStatusScheduled {
			return nil, apperrors.InvalidState("Only scheduled sessions can be cancelled")
		}
		status := model.SessionStatusCancelled
		return &model.SessionChange{Status: &status}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("sessionId", id).Str("userId", user.ID).Msg("session cancelled")
	s.publish(ctx, id, sse.EventSessionCancelled, session)
	return session, nil
}

// End completes a session from scheduled or live, optionally attaching a
// recording URL.
func (s *SessionService) End(ctx context.Context, user *model.User, id string, recordingURL *string) (*model.Session, error) {
	session, err := s.mutate(ctx, id, func(session *model.Session) (*model.SessionChange, error) {
		if err := CanManageSession(user, session); err != nil {
			return nil, err
		}
		if session.Status.Terminal() {
			return nil, apperrors.InvalidState("Only scheduled or live sessions can be ended")
		}
		status := model.SessionStatusCompleted
		return &model.SessionChange{Status: &status, RecordingURL: recordingURL}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("sessionId", id).Str("userId", user.ID).Msg("session ended")
	s.publish(ctx, id, sse.EventSessionCompleted, session)
	return session, nil
}

// PostChat appends one message to the session's chat log. The log is
// write-once per entry; no edit or delete path exists.
func (s *SessionService) PostChat(ctx context.Context, user *model.User, id string, message string) (*model.ChatMessage, error) {
	if err := validateChatMessage(message); err != nil {
		return nil, err
	}

	session, err := s.mutate(ctx, id, func(session *model.Session) (*model.SessionChange, error) {
		if err := CanChat(user, session); err != nil {
			return nil, err
		}
		// Stamped under the row lock so commit order and timestamp order
		// cannot diverge across concurrent posters.
		return &model.SessionChange{
			AddChatMessage: &model.ChatMessage{
				ID:        uuid.NewString(),
				UserID:    user.ID,
				Message:   message,
				Timestamp: time.Now(),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	entry := session.ChatMessages[len(session.ChatMessages)-1]
	log.Info().Str("sessionId", id).Str("userId", user.ID).Msg("chat message posted")
	s.publish(ctx, id, sse.EventChatMessage, entry)
	return &entry, nil
}

// Delete removes a session through the two-step protocol: retract the
// idea's back-reference first, then drop the session. A crash in between
// leaves a dangling reference the cleanup pass repairs.
func (s *SessionService) Delete(ctx context.Context, user *model.User, id string) error {
	if err := CanDeleteSession(user); err != nil {
		return err
	}

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}

	if err := s.deleteSession(ctx, session); err != nil {
		return err
	}

	log.Info().Str("sessionId", id).Str("userId", user.ID).Msg("session deleted")
	s.publish(ctx, id, sse.EventSessionDeleted, map[string]string{"id": id})
	return nil
}

// PurgeTerminatedBefore deletes completed/cancelled sessions created before
// the cutoff. Used by the retention job; each session goes through the same
// two-step delete as the administrative path.
func (s *SessionService) PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	sessions, err := s.sessionRepo.FindTerminatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var purged int64
	for _, session := range sessions {
		if err := s.deleteSession(ctx, &session); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func (s *SessionService) deleteSession(ctx context.Context, session *model.Session) error {
	if err := s.ideaRepo.RemoveSession(ctx, session.IdeaID, session.ID); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if err := s.sessionRepo.Delete(ctx, session.ID); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return nil
}

// mutate wraps AtomicUpdate, translating a missing session to NOT_FOUND.
func (s *SessionService) mutate(ctx context.Context, id string, fn repository.SessionMutator) (*model.Session, error) {
	session, err := s.sessionRepo.AtomicUpdate(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

// publish emits the change event for a committed mutation. Delivery is a
// collaborator concern; failures are logged, never surfaced to the caller.
func (s *SessionService) publish(ctx context.Context, sessionID string, eventType string, payload any) {
	if s.publisher == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to encode event payload")
		return
	}

	if err := s.publisher.Publish(ctx, sessionID, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Error().Err(err).
			Str("sessionId", sessionID).
			Str("eventType", eventType).
			Msg("failed to publish session event")
	}
}
