package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideahub/session-server-go/internal/middleware"
	"github.com/ideahub/session-server-go/internal/model"
	"github.com/ideahub/session-server-go/internal/repository"
	"github.com/ideahub/session-server-go/internal/service"
	"github.com/ideahub/session-server-go/internal/sse"
)

// Compact in-memory repositories backing a real SessionService, so the
// tests exercise the full handler -> service -> store path.

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	chatSeq  int64
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.sessions[s.ID] = &c
	return nil
}

func (r *fakeSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindDetailByID(ctx context.Context, id string) (*model.Session, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeSessionRepo) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.Session
	for _, s := range r.sessions {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

func (r *fakeSessionRepo) AtomicUpdate(ctx context.Context, id string, fn repository.SessionMutator) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	change, err := fn(s)
	if err != nil {
		return nil, err
	}
	if change != nil {
		if change.Status != nil {
			s.Status = *change.Status
		}
		if change.RecordingURL != nil {
			s.RecordingURL = change.RecordingURL
		}
		if change.Fields != nil && change.Fields.Title != nil {
			s.Title = *change.Fields.Title
		}
		if change.AddParticipant != nil {
			p := *change.AddParticipant
			p.SessionID = s.ID
			s.Participants = append(s.Participants, p)
		}
		if change.AddChatMessage != nil {
			m := *change.AddChatMessage
			m.SessionID = s.ID
			r.chatSeq++
			m.Seq = r.chatSeq
			s.ChatMessages = append(s.ChatMessages, m)
		}
	}
	c := *s
	return &c, nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) FindTerminatedBefore(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	return nil, nil
}

type fakeIdeaRepo struct {
	ideas map[string]*model.Idea
}

func (r *fakeIdeaRepo) FindByID(ctx context.Context, id string) (*model.Idea, error) {
	if idea, ok := r.ideas[id]; ok {
		c := *idea
		return &c, nil
	}
	return nil, nil
}

func (r *fakeIdeaRepo) FindRefsByIDs(ctx context.Context, ids []string) (map[string]model.IdeaRef, error) {
	refs := make(map[string]model.IdeaRef)
	for _, id := range ids {
		if idea, ok := r.ideas[id]; ok {
			refs[id] = model.IdeaRef{ID: idea.ID, Title: idea.Title}
		}
	}
	return refs, nil
}

func (r *fakeIdeaRepo) AppendSession(ctx context.Context, ideaID, sessionID string) error {
	return nil
}

func (r *fakeIdeaRepo) RemoveSession(ctx context.Context, ideaID, sessionID string) error {
	return nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) FindRefsByIDs(ctx context.Context, ids []string) (map[string]model.UserRef, error) {
	refs := make(map[string]model.UserRef)
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			refs[id] = model.UserRef{ID: u.ID, Username: u.Username}
		}
	}
	return refs, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, sessionID string, event sse.Event) error {
	return nil
}

// testAuth resolves "Bearer <userID>" straight to the seeded user. Requests
// without a known principal get 401, mirroring the real middleware.
func testAuth(users map[string]*model.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			user, ok := users[token]
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), middleware.UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

type handlerEnv struct {
	router http.Handler
	host   *model.User
	member *model.User
	idea   *model.Idea
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	host := &model.User{ID: uuid.NewString(), Username: "founder", Role: model.UserRoleFounder}
	member := &model.User{ID: uuid.NewString(), Username: "member", Role: model.UserRoleMember}
	idea := &model.Idea{ID: uuid.NewString(), Title: "Test idea", AuthorID: host.ID}

	users := map[string]*model.User{host.ID: host, member.ID: member}

	svc := service.NewSessionService(
		&fakeSessionRepo{sessions: make(map[string]*model.Session)},
		&fakeIdeaRepo{ideas: map[string]*model.Idea{idea.ID: idea}},
		&fakeUserRepo{users: users},
		nopPublisher{},
	)

	h := NewSessionHandler(svc, testAuth(users), passthrough)
	return &handlerEnv{router: h.Routes(), host: host, member: member, idea: idea}
}

func (e *handlerEnv) do(t *testing.T, method, path string, body any, user *model.User) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+user.ID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *handlerEnv) createSession(t *testing.T, maxParticipants int) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/", map[string]any{
		"title":           "Kickoff",
		"description":     "First round",
		"idea":            e.idea.ID,
		"scheduledTime":   time.Now().Add(time.Hour).Format(time.RFC3339),
		"maxParticipants": maxParticipants,
	}, e.host)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Success bool          `json:"success"`
		Data    model.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data.ID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Error.Code
}

func TestSessionRoutes(t *testing.T) {
	t.Run("list is public and wraps count", func(t *testing.T) {
		env := newHandlerEnv(t)
		env.createSession(t, 5)

		rec := env.do(t, http.MethodGet, "/", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool            `json:"success"`
			Count   int             `json:"count"`
			Data    json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("create requires authentication", func(t *testing.T) {
		env := newHandlerEnv(t)
		rec := env.do(t, http.MethodPost, "/", map[string]any{"title": "x"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create rejects non-author with 403", func(t *testing.T) {
		env := newHandlerEnv(t)
		rec := env.do(t, http.MethodPost, "/", map[string]any{
			"title":         "Hijack",
			"description":   "d",
			"idea":          env.idea.ID,
			"scheduledTime": time.Now().Add(time.Hour).Format(time.RFC3339),
		}, env.member)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "NOT_AUTHORIZED", errorCode(t, rec))
	})

	t.Run("get validates session id", func(t *testing.T) {
		env := newHandlerEnv(t)

		rec := env.do(t, http.MethodGet, "/not-a-uuid", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodGet, "/"+uuid.NewString(), nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
	})

	t.Run("join then duplicate join", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodPut, "/"+id+"/join", nil, env.member)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodPut, "/"+id+"/join", nil, env.member)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ALREADY_JOINED", errorCode(t, rec))
	})

	t.Run("capacity rejection surfaces SESSION_FULL", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 1)

		rec := env.do(t, http.MethodPut, "/"+id+"/join", nil, env.member)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodPut, "/"+id+"/join", nil, env.host)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "SESSION_FULL", errorCode(t, rec))
	})

	t.Run("cancel by non-host is forbidden", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodPut, "/"+id+"/cancel", nil, env.member)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "NOT_AUTHORIZED", errorCode(t, rec))
	})

	t.Run("cancel twice maps second to 400", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodPut, "/"+id+"/cancel", nil, env.host)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodPut, "/"+id+"/cancel", nil, env.host)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_STATE", errorCode(t, rec))
	})

	t.Run("update after cancel is invalid state", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodPut, "/"+id+"/cancel", nil, env.host)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodPut, "/"+id, map[string]any{"title": "Late"}, env.host)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_STATE", errorCode(t, rec))
	})

	t.Run("update strips immutable fields", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodPut, "/"+id, map[string]any{
			"title":  "Renamed",
			"status": "completed",
			"host":   "someone-else",
		}, env.host)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Data model.Session `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Renamed", resp.Data.Title)
		assert.Equal(t, model.SessionStatusScheduled, resp.Data.Status)
		assert.Equal(t, env.host.ID, resp.Data.HostID)
	})

	t.Run("end without body completes the session", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodPut, "/"+id+"/end", nil, env.host)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Data model.Session `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, model.SessionStatusCompleted, resp.Data.Status)
		assert.Nil(t, resp.Data.RecordingURL)
	})

	t.Run("end keeps the recording from a body without content length", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		// Wrapping the reader hides its type, so the request goes out with
		// ContentLength -1 the way a chunked client would send it.
		body := struct{ io.Reader }{strings.NewReader(`{"recordingUrl":"https://cdn.example/rec.mp4"}`)}
		req := httptest.NewRequest(http.MethodPut, "/"+id+"/end", body)
		req.Header.Set("Authorization", "Bearer "+env.host.ID)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Data model.Session `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Data.RecordingURL)
		assert.Equal(t, "https://cdn.example/rec.mp4", *resp.Data.RecordingURL)
	})

	t.Run("chat from outsider is forbidden", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodPost, "/"+id+"/chat", map[string]any{"message": "hi"}, env.member)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "NOT_AUTHORIZED", errorCode(t, rec))
	})

	t.Run("chat from host returns the entry", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodPost, "/"+id+"/chat", map[string]any{"message": "welcome"}, env.host)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Data model.ChatMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "welcome", resp.Data.Message)
		assert.Equal(t, env.host.ID, resp.Data.UserID)
	})

	t.Run("delete requires elevated role", func(t *testing.T) {
		env := newHandlerEnv(t)
		id := env.createSession(t, 5)

		rec := env.do(t, http.MethodDelete, "/"+id, nil, env.host)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed body is a validation error", func(t *testing.T) {
		env := newHandlerEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
		req.Header.Set("Authorization", "Bearer "+env.host.ID)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION", errorCode(t, rec))
	})
}
