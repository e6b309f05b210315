package handlers

import (
	"fmt"
	"net/http"
	"time"

	"nfl-pickem/interfaces"
	"nfl-pickem/logging"
	"nfl-pickem/middleware"
	"nfl-pickem/models"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// LiveHandler streams live events over SSE and WebSocket
type LiveHandler struct {
	broker   interfaces.LiveBroker
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewLiveHandler creates a live handler. checkOrigin may be nil to accept
// same-origin WebSocket upgrades only.
func NewLiveHandler(broker interfaces.LiveBroker, checkOrigin func(r *http.Request) bool) *LiveHandler {
	return &LiveHandler{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logging.WithPrefix("Live"),
	}
}

func viewerID(r *http.Request) int {
	if user := middleware.GetUserFromContext(r); user != nil {
		return user.ID
	}
	return 0
}

// ServeSSE handles GET /api/events
func (h *LiveHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe(viewerID(r))
	defer h.broker.Unsubscribe(sub.ID)
	h.logger.Infof("SSE client connected from %s (UserID: %d)", r.RemoteAddr, sub.UserID)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := h.broker.HeartbeatInterval()
	idle := time.NewTimer(heartbeat)
	defer idle.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debugf("SSE client gone (UserID: %d)", sub.UserID)
			return

		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				h.logger.Debugf("SSE write failed for %s: %v", sub.ID, err)
				sub.MarkDead()
				return
			}
			flusher.Flush()
			idle.Reset(heartbeat)

		case <-idle.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				sub.MarkDead()
				return
			}
			flusher.Flush()
			idle.Reset(heartbeat)
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event models.LiveEvent) error {
	data, err := sonic.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// ServeWebSocket handles GET /api/ws
func (h *LiveHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debugf("WebSocket upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	sub := h.broker.Subscribe(viewerID(r))
	defer h.broker.Unsubscribe(sub.ID)
	h.logger.Infof("WebSocket client connected from %s (UserID: %d)", r.RemoteAddr, sub.UserID)

	heartbeat := h.broker.HeartbeatInterval()
	_ = conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
	})

	// Clients never send data; the read loop only observes close and pong frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.logger.Debugf("WebSocket client gone (UserID: %d)", sub.UserID)
			return

		case <-r.Context().Done():
			return

		case event, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			data, err := sonic.Marshal(event)
			if err != nil {
				h.logger.Errorf("Failed to encode %s event: %v", event.Type, err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				sub.MarkDead()
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				sub.MarkDead()
				return
			}
		}
	}
}
