package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/ideahub/session-server-go/internal/errors"
	"github.com/ideahub/session-server-go/internal/httputil"
	"github.com/ideahub/session-server-go/internal/middleware"
	"github.com/ideahub/session-server-go/internal/model"
	"github.com/ideahub/session-server-go/internal/service"
	"github.com/ideahub/session-server-go/internal/util"
)

type SessionHandler struct {
	sessionService *service.SessionService
	authMiddleware func(http.Handler) http.Handler
	rateLimit      func(http.Handler) http.Handler
}

func NewSessionHandler(
	sessionService *service.SessionService,
	authMiddleware func(http.Handler) http.Handler,
	rateLimit func(http.Handler) http.Handler,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		authMiddleware: authMiddleware,
		rateLimit:      rateLimit,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Use(h.rateLimit)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Put("/{id}/join", h.Join)
		r.Put("/{id}/cancel", h.Cancel)
		r.Put("/{id}/end", h.End)
		r.Post("/{id}/chat", h.PostChat)
		r.Delete("/{id}", h.Delete)
	})

	return r
}

// GET /v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := h.sessionService.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list sessions")
		writeError(w, err)
		return
	}

	httputil.WriteSuccessCount(w, http.StatusOK, len(views), views)
}

// POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var params model.CreateSessionParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessionService.Create(r.Context(), user, params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, session)
}

// GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.sessionService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, view)
}

// PUT /v1/sessions/{id}
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var params model.UpdateSessionParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessionService.Update(r.Context(), user, id, params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, session)
}

// PUT /v1/sessions/{id}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessionService.Join(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, session)
}

// PUT /v1/sessions/{id}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessionService.Cancel(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, session)
}

type endSessionRequest struct {
	RecordingURL *string `json:"recordingUrl"`
}

// PUT /v1/sessions/{id}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// The body is optional; chunked requests report no ContentLength, so
	// decode regardless and treat an empty body as no recording.
	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, err)
		return
	}

	session, err := h.sessionService.End(r.Context(), user, id, req.RecordingURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, session)
}

type chatMessageRequest struct {
	Message string `json:"message"`
}

// POST /v1/sessions/{id}/chat
func (h *SessionHandler) PostChat(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req chatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.sessionService.PostChat(r.Context(), user, id, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entry)
}

// DELETE /v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sessionService.Delete(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"id": id})
}

func sessionID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		return "", apperrors.InvalidInput("session id", "must be a valid UUID")
	}
	return id, nil
}

func parseListFilter(r *http.Request) (model.SessionFilter, error) {
	var filter model.SessionFilter
	q := r.URL.Query()

	if status := q.Get("status"); status != "" {
		if !util.IsValidEnum(status, model.ValidSessionStatuses()) {
			return filter, apperrors.InvalidInput("status", "unknown session status")
		}
		s := model.SessionStatus(status)
		filter.Status = &s
	}
	if idea := q.Get("idea"); idea != "" {
		if !util.IsValidUUID(idea) {
			return filter, apperrors.InvalidInput("idea", "must be a valid UUID")
		}
		filter.IdeaID = &idea
	}
	filter.Upcoming = q.Get("upcoming") == "true"

	return filter, nil
}
