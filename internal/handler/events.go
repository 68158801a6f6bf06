package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/ideahub/session-server-go/internal/errors"
	"github.com/ideahub/session-server-go/internal/middleware"
	"github.com/ideahub/session-server-go/internal/service"
	"github.com/ideahub/session-server-go/internal/sse"
)

// EventsHandler streams session change events over SSE. Subscribers get
// every event the core emits for their session from the moment they
// connect; there is no replay.
type EventsHandler struct {
	broker         *sse.Broker
	sessionService *service.SessionService
}

func NewEventsHandler(broker *sse.Broker, sessionService *service.SessionService) *EventsHandler {
	return &EventsHandler{
		broker:         broker,
		sessionService: sessionService,
	}
}

// GET /v1/sessions/{id}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Confirm the session exists before holding the stream open.
	if _, err := h.sessionService.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(id)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("sessionId", id).
		Str("userId", user.ID).
		Msg("sse connection established")

	h.sendEvent(w, flusher, "connected", map[string]string{"sessionId": id})

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("sessionId", id).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("sessionId", id).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("sessionId", id).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
