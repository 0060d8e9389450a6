// Package server provides the HTTP server and routing for the
// assignment engine.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/territory-assign/internal/events"
)

// ProgressStreamHandler streams every events.Manager event over a
// websocket connection as JSON, for a UI to render generate()/execute()
// progress without polling.
type ProgressStreamHandler struct {
	manager *events.Manager
	log     zerolog.Logger
}

// NewProgressStreamHandler creates a new progress stream handler.
func NewProgressStreamHandler(manager *events.Manager, log zerolog.Logger) *ProgressStreamHandler {
	return &ProgressStreamHandler{
		manager: manager,
		log:     log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/assignments/stream requests (websocket).
func (h *ProgressStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to accept websocket connection")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	eventChan := make(chan events.EventWithData, 100)

	unsubscribe := h.manager.Subscribe(func(evt events.EventWithData) {
		select {
		case eventChan <- evt:
		default:
			h.log.Warn().Str("event_type", string(evt.Type)).Msg("progress channel full, dropping event")
		}
	})
	defer unsubscribe()

	h.log.Info().Msg("client connected to progress stream")

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-pingTicker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case evt := <-eventChan:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, evt)
			cancel()
			if err != nil {
				h.log.Warn().Err(err).Msg("failed to write progress event")
				return
			}
		}
	}
}

