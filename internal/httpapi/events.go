package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"lensd/pkg/types"
)

const (
	eventWriteWait  = 5 * time.Second
	eventPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts requests without an Origin, same-host origins, and the
// configured CORS origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	if !corsEnabled {
		return false
	}
	return slices.Contains(corsAllowedOrigins, "*") || slices.Contains(corsAllowedOrigins, origin)
}

// eventsHandler pushes every orchestrator state change to a WebSocket
// client, starting with the current status.
func eventsHandler(svc Service, base context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		eventClients.Inc()
		defer eventClients.Dec()

		events, stop := svc.Events()
		defer stop()

		// Reads only serve to notice the client going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		write := func(ev types.StatusEvent) bool {
			_ = ws.SetWriteDeadline(time.Now().Add(eventWriteWait))
			return ws.WriteJSON(ev) == nil
		}
		if !write(types.StatusEvent{Type: "status", Status: svc.Status()}) {
			return
		}

		ping := time.NewTicker(eventPingPeriod)
		defer ping.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if !write(ev) {
					return
				}
			case <-ping.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
					return
				}
			case <-gone:
				return
			case <-base.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
				_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventWriteWait))
				return
			}
		}
	}
}
