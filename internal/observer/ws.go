package observer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 45 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// upgrader accepts any origin: the side panel surface embedding this
// endpoint is a local extension context, not a public web server.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler returns an http.Handler that upgrades to a websocket and streams
// trace events as JSON text frames. Each connection gets its own
// subscription; a slow reader simply misses events rather than blocking
// the observer.
func (o *Observer) Handler(logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("observer: websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id, events := o.Subscribe()
		defer o.Unsubscribe(id)

		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		go drainReads(conn)

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for _, ev := range o.ListRecent(DefaultListLimit) {
			if err := writeJSON(conn, ev); err != nil {
				return
			}
		}

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeJSON(conn, ev); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}

func writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// drainReads discards inbound frames; this is a push-only feed, but we must
// keep reading so pong control frames are processed and the socket's read
// side doesn't back up.
func drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
