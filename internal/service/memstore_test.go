package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ideahub/session-server-go/internal/model"
	"github.com/ideahub/session-server-go/internal/repository"
	"github.com/ideahub/session-server-go/internal/sse"
)

// In-memory doubles for the repository interfaces. memSessionRepo applies
// mutators under a lock, matching the row-lock serialization the Postgres
// implementation provides.

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	chatSeq  int64
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	c.Participants = append([]model.Participant(nil), s.Participants...)
	c.ChatMessages = append([]model.ChatMessage(nil), s.ChatMessages...)
	return &c
}

func (r *memSessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *memSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	c := cloneSession(session)
	c.ChatMessages = nil
	return c, nil
}

func (r *memSessionRepo) FindDetailByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	c := cloneSession(session)
	sort.Slice(c.ChatMessages, func(i, j int) bool {
		return c.ChatMessages[i].Seq < c.ChatMessages[j].Seq
	})
	return c, nil
}

func (r *memSessionRepo) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []model.Session
	for _, session := range r.sessions {
		if filter.Status != nil && session.Status != *filter.Status {
			continue
		}
		if filter.IdeaID != nil && session.IdeaID != *filter.IdeaID {
			continue
		}
		if filter.Upcoming && session.ScheduledTime.Before(time.Now()) {
			continue
		}
		c := cloneSession(session)
		c.ChatMessages = nil
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledTime.Before(result[j].ScheduledTime)
	})
	return result, nil
}

func (r *memSessionRepo) AtomicUpdate(ctx context.Context, id string, fn repository.SessionMutator) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}

	snapshot := cloneSession(session)
	snapshot.ChatMessages = nil

	change, err := fn(snapshot)
	if err != nil {
		return nil, err
	}

	if change != nil {
		if change.Fields != nil {
			f := change.Fields
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
			session.Status = *change.Status
		}
		if change.RecordingURL != nil {
			session.RecordingURL = change.RecordingURL
		}
		if change.AddParticipant != nil {
			p := *change.AddParticipant
			p.SessionID = session.ID
			session.Participants = append(session.Participants, p)
		}
		if change.AddChatMessage != nil {
			m := *change.AddChatMessage
			m.SessionID = session.ID
			r.chatSeq++
			m.Seq = r.chatSeq
			session.ChatMessages = append(session.ChatMessages, m)
		}
	}

	return cloneSession(session), nil
}

func (r *memSessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *memSessionRepo) FindTerminatedBefore(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []model.Session
	for _, session := range r.sessions {
		if session.Status.Terminal() && session.CreatedAt.Before(cutoff) {
			result = append(result, *cloneSession(session))
		}
	}
	return result, nil
}

type memIdeaRepo struct {
	mu    sync.Mutex
	ideas map[string]*model.Idea
}

func newMemIdeaRepo() *memIdeaRepo {
	return &memIdeaRepo{ideas: make(map[string]*model.Idea)}
}

func (r *memIdeaRepo) FindByID(ctx context.Context, id string) (*model.Idea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idea, ok := r.ideas[id]
	if !ok {
		return nil, nil
	}
	c := *idea
	c.SessionIDs = append([]string(nil), idea.SessionIDs...)
	return &c, nil
}

func (r *memIdeaRepo) FindRefsByIDs(ctx context.Context, ids []string) (map[string]model.IdeaRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make(map[string]model.IdeaRef)
	for _, id := range ids {
		if idea, ok := r.ideas[id]; ok {
			refs[id] = model.IdeaRef{ID: idea.ID, Title: idea.Title, Description: idea.Description}
		}
	}
	return refs, nil
}

func (r *memIdeaRepo) AppendSession(ctx context.Context, ideaID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idea, ok := r.ideas[ideaID]
	if !ok {
		return nil
	}
	for _, id := range idea.SessionIDs {
		if id == sessionID {
			return nil
		}
	}
	idea.SessionIDs = append(idea.SessionIDs, sessionID)
	return nil
}

func (r *memIdeaRepo) RemoveSession(ctx context.Context, ideaID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idea, ok := r.ideas[ideaID]
	if !ok {
		return nil
	}
	filtered := idea.SessionIDs[:0]
	for _, id := range idea.SessionIDs {
		if id != sessionID {
			filtered = append(filtered, id)
		}
	}
	idea.SessionIDs = filtered
	return nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	c := *user
	return &c, nil
}

func (r *memUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.TokenHash == tokenHash {
			c := *user
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindRefsByIDs(ctx context.Context, ids []string) (map[string]model.UserRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make(map[string]model.UserRef)
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			refs[id] = model.UserRef{ID: user.ID, Username: user.Username, Avatar: user.Avatar}
		}
	}
	return refs, nil
}

type recordPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordPublisher) Publish(ctx context.Context, sessionID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *recordPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}
