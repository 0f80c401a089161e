package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	streamPollInterval = 2 * time.Second
	streamBatch        = 100
	streamWriteWait    = 10 * time.Second
	streamPingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local-only surface, same policy as the rest of the server.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamEvents pushes new signal events over a websocket. Clients may
// resume from a known id with ?after_id=N; otherwise only events created
// after connect are streamed.
func (h *handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	afterID := int64(-1)
	if raw := r.URL.Query().Get("after_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "after_id must be a non-negative integer")
			return
		}
		afterID = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if afterID < 0 {
		// No resume point: start at the current head, acked or not.
		head, err := h.store.MaxEventID(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("event stream head lookup failed")
			return
		}
		afterID = head
	}

	// Reader loop only to detect close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			events, err := h.store.EventsSince(r.Context(), afterID, streamBatch)
			if err != nil {
				log.Error().Err(err).Msg("event stream poll failed")
				return
			}
			for _, ev := range events {
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
				afterID = ev.ID
			}
		}
	}
}
