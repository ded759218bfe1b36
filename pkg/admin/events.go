// Live request streaming over WebSocket.

package admin

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is how long a single frame write may take.
	writeWait = 10 * time.Second

	// pingPeriod is how often the server pings an idle client.
	pingPeriod = 30 * time.Second
)

// handleEvents handles GET /events. Each new request log entry is pushed to
// the client as one JSON message, in the order it was logged.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		a.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sub, unsubscribe := a.engine.Store().Subscribe()
	defer unsubscribe()

	a.log.Debug("event stream opened", "remote", r.RemoteAddr)

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to process control frames and notice disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(entry); err != nil {
				a.log.Debug("event stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			a.log.Debug("event stream closed", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}
