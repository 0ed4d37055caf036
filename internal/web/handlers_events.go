package web

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Luuk00/eco-costa-track/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// handleSessionEvents streams session events over a WebSocket. The first
// message is a snapshot of the current state; the socket closes when the
// session is committed, aborted, cancelled or expired.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	events, unsubscribe, err := s.service.SubscribeEvents(tenant, sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logging.FromContext(r.Context()).Warn("websocket upgrade failed", "error", err, "session_id", sessionID)
		return
	}
	defer conn.Close()

	log := logging.WithFields(r.Context(), "session_id", sessionID)
	log.Debug("event stream opened")

	// Reader: handles pongs and notices when the client goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				log.Debug("event stream finished")
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				log.Debug("event stream write failed", "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-gone:
			log.Debug("event stream client disconnected")
			return
		}
	}
}

// originChecker allows the configured origins. With none configured only
// same-host origins (or requests without an Origin header) are accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) > 0 {
			return slices.Contains(allowed, "*") || slices.ContainsFunc(allowed, func(a string) bool {
				return strings.EqualFold(strings.TrimRight(a, "/"), origin)
			})
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
