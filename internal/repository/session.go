package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ideahub/session-server-go/internal/config"
	"github.com/ideahub/session-server-go/internal/database"
	apperrors "github.com/ideahub/session-server-go/internal/errors"
	"github.com/ideahub/session-server-go/internal/model"
)

// SessionMutator inspects a freshly locked session snapshot and either
// returns the write-set to commit or an error rejecting the mutation.
// It runs inside the transaction that holds the session's row lock, so its
// checks and the resulting writes form one atomic unit.
type SessionMutator func(s *model.Session) (*model.SessionChange, error)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// FindByID returns the session with participants loaded, chat excluded.
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindDetailByID additionally loads the chat log.
	FindDetailByID(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error)
	// AtomicUpdate runs fn against the latest committed state under a row
	// lock and persists the returned change in the same transaction.
	// Returns (nil, nil) when the session does not exist. Transient
	// serialization failures are retried a bounded number of times before
	// surfacing STORE_UNAVAILABLE.
	AtomicUpdate(ctx context.Context, id string, fn SessionMutator) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	// FindTerminatedBefore returns completed/cancelled sessions whose
	// creation predates the cutoff, for retention cleanup.
	FindTerminatedBefore(ctx context.Context, cutoff time.Time) ([]model.Session, error)
}

type sessionRepo struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions
			(id, title, description, host_id, idea_id, scheduled_time,
			 duration_minutes, status, max_participants, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, session.ID, session.Title, session.Description, session.HostID,
		session.IdeaID, session.ScheduledTime, session.DurationMinutes,
		session.Status, session.MaxParticipants, session.CreatedAt)
	return err
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadParticipants(ctx, r.db.DB, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindDetailByID(ctx context.Context, id string) (*model.Session, error) {
	session, err := r.FindByID(ctx, id)
	if err != nil || session == nil {
		return session, err
	}

	err = r.db.SelectContext(ctx, &session.ChatMessages, `
		SELECT * FROM session_chat_messages
		WHERE session_id = $1
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepo) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	query := `SELECT * FROM sessions`
	var clauses []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, `status = $`+strconv.Itoa(len(args)))
	}
	if filter.IdeaID != nil {
		args = append(args, *filter.IdeaID)
		clauses = append(clauses, `idea_id = $`+strconv.Itoa(len(args)))
	}
	if filter.Upcoming {
		clauses = append(clauses, `scheduled_time >= NOW()`)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY scheduled_time ASC`

	var sessions []model.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	ids := make([]string, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}

	var participants []model.Participant
	err := r.db.SelectContext(ctx, &participants, `
		SELECT * FROM session_participants
		WHERE session_id = ANY($1)
		ORDER BY joined_at ASC, user_id ASC
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	bySession := make(map[string][]model.Participant)
	for _, p := range participants {
		bySession[p.SessionID] = append(bySession[p.SessionID], p)
	}
	for i := range sessions {
		sessions[i].Participants = bySession[sessions[i].ID]
	}
	return sessions, nil
}

func (r *sessionRepo) AtomicUpdate(ctx context.Context, id string, fn SessionMutator) (*model.Session, error) {
	var lastErr error
	for attempt := 0; attempt < config.AtomicUpdateMaxRetries; attempt++ {
		session, err := r.updateOnce(ctx, id, fn)
		if err == nil {
			return session, nil
		}
		if _, ok := apperrors.AsAppError(err); ok {
			// Mutator rejection: final, never retried.
			return nil, err
		}
		if !IsRetryable(err) {
			return nil, apperrors.StoreUnavailable(err)
		}
		lastErr = err
	}
	return nil, apperrors.StoreUnavailable(lastErr)
}

func (r *sessionRepo) updateOnce(ctx context.Context, id string, fn SessionMutator) (*model.Session, error) {
	var updated *model.Session

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var session model.Session
		err := tx.GetContext(ctx, &session, `
			SELECT * FROM sessions WHERE id = $1 FOR UPDATE
		`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := r.loadParticipants(ctx, tx, &session); err != nil {
			return err
		}

		change, err := fn(&session)
		if err != nil {
			return err
		}

		if err := r.applyChange(ctx, tx, &session, change); err != nil {
			return err
		}

		updated = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *sessionRepo) applyChange(ctx context.Context, tx *sqlx.Tx, session *model.Session, change *model.SessionChange) error {
	if change == nil {
		return nil
	}

	if change.Fields != nil {
		f := change.Fields
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions SET
				title = COALESCE($2, title),
				description = COALESCE($3, description),
				scheduled_time = COALESCE($4, scheduled_time),
				duration_minutes = COALESCE($5, duration_minutes),
				max_participants = COALESCE($6, max_participants)
			WHERE id = $1
		`, session.ID, f.Title, f.Description, f.ScheduledTime,
			f.DurationMinutes, f.MaxParticipants)
		if err != nil {
			return err
		}
		if f.Title != nil {
			session.Title = *f.Title
		}
		if f.Description != nil {
			session.Description = *f.Description
		}
		if f.ScheduledTime != nil {
			session.ScheduledTime = *f.ScheduledTime
		}
		if f.DurationMinutes != nil {
			session.DurationMinutes = *f.DurationMinutes
		}
		if f.MaxParticipants != nil {
			session.MaxParticipants = *f.MaxParticipants
		}
	}

	if change.Status != nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status = $2 WHERE id = $1
		`, session.ID, *change.Status)
		if err != nil {
			return err
		}
		session.Status = *change.Status
	}

	if change.RecordingURL != nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions SET recording_url = $2 WHERE id = $1
		`, session.ID, *change.RecordingURL)
		if err != nil {
			return err
		}
		session.RecordingURL = change.RecordingURL
	}

	if change.AddParticipant != nil {
		p := *change.AddParticipant
		p.SessionID = session.ID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_participants (session_id, user_id, joined_at)
			VALUES ($1, $2, $3)
		`, p.SessionID, p.UserID, p.JoinedAt)
		if err != nil {
			return err
		}
		session.Participants = append(session.Participants, p)
	}

	if change.AddChatMessage != nil {
		m := *change.AddChatMessage
		m.SessionID = session.ID
		err := tx.GetContext(ctx, &m.Seq, `
			INSERT INTO session_chat_messages (id, session_id, user_id, message, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING seq
		`, m.ID, m.SessionID, m.UserID, m.Message, m.Timestamp)
		if err != nil {
			return err
		}
		session.ChatMessages = append(session.ChatMessages, m)
	}

	return nil
}

func (r *sessionRepo) loadParticipants(ctx context.Context, q sqlx.QueryerContext, session *model.Session) error {
	return sqlx.SelectContext(ctx, q, &session.Participants, `
		SELECT * FROM session_participants
		WHERE session_id = $1
		ORDER BY joined_at ASC, user_id ASC
	`, session.ID)
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionRepo) FindTerminatedBefore(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE status IN ('completed', 'cancelled') AND created_at < $1
		ORDER BY created_at ASC
	`, cutoff)
	return sessions, err
}
