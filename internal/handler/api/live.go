package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"Sentinel/internal/domain/models"
	applogger "Sentinel/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the dashboard is same-origin in production and proxied in dev
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHub pushes finished run records to websocket subscribers. It
// implements usecase.Broadcaster.
type LiveHub struct {
	mu      sync.Mutex
	clients map[*liveClient]struct{}
	logger  *applogger.Logger
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewLiveHub creates the hub.
func NewLiveHub(l *applogger.Logger) *LiveHub {
	return &LiveHub{
		clients: make(map[*liveClient]struct{}),
		logger:  l,
	}
}

// RegisterRoutes mounts the live stream endpoint.
func (h *LiveHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/live", h.Serve)
}

// Broadcast fans a record out to every subscriber. Slow clients are
// dropped rather than allowed to stall the run.
func (h *LiveHub) Broadcast(rec *models.DailyRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		h.logger.Error("broadcast marshal failed", applogger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow live subscriber")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Serve upgrades the connection and attaches it to the hub.
func (h *LiveHub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &liveClient{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("live subscriber connected", applogger.Int("subscribers", count))

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

func (h *LiveHub) detach(client *liveClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}

// readPump discards inbound frames; the stream is one-way. It exists
// to process pongs and detect the close handshake.
func (h *LiveHub) readPump(client *liveClient) {
	defer h.detach(client)
	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHub) writePump(client *liveClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.detach(client)
	}()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
