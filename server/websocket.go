package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/clipqueue/telemetry"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// HandleWebsocket streams the queue view: one "state" frame on connect and one per change.
// Clients only listen; anything they send is discarded.
func (h *Handlers) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	log := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "http"))
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return h.origins.allows(r.Header.Get("Origin"))
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()
	telemetry.AddWebsocketClients(1)
	defer telemetry.AddWebsocketClients(-1)

	states, cancel := h.engine.Subscribe()
	defer cancel()

	// The reader notices closed connections and answers pings.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case st := <-states:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			msg := wsMessage{Type: "state", At: time.Now().UTC(), Data: newQueueView(st, defaultHistory)}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("websocket write failed", slog.Any("err", err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
