package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/httputil"
)

const (
	streamBuffer       = 64
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// EventsStreamHandler streams the caller's events over a websocket
type EventsStreamHandler struct {
	bus     *events.Bus
	origins []string
	log     zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(bus *events.Bus, origins []string, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:     bus,
		origins: origins,
		log:     log.With().Str("handler", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws. Only events for the authenticated
// user are delivered; a slow client misses events rather than blocking
// publishers.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		httputil.WriteError(w, h.log, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	sub := h.bus.Subscribe(streamBuffer, events.ForUser(userID))
	defer sub.Close()

	// Client messages are ignored; CloseRead cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Str("user_id", userID).Msg("Client connected to event stream")

	err = h.stream(ctx, conn, sub)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
	default:
		h.log.Debug().Err(err).Str("user_id", userID).Msg("Event stream ended")
	}

	h.log.Info().
		Str("user_id", userID).
		Int64("dropped", sub.Dropped()).
		Msg("Client disconnected from event stream")
}

func (h *EventsStreamHandler) stream(ctx context.Context, conn *websocket.Conn, sub *events.Subscription) error {
	if err := h.write(ctx, conn, map[string]interface{}{
		"type":      "connected",
		"timestamp": time.Now().UTC(),
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}

		case event, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := h.write(ctx, conn, event); err != nil {
				return err
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
