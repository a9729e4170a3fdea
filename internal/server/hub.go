package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"futures-ai-dashboard-go/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsClient wraps a connection with a write lock; gorilla connections allow
// only one concurrent writer.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// TickerHub fans the refreshed ticker list out to connected browsers and
// keeps the latest list cached for plain HTTP reads.
type TickerHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	latest  []models.Ticker

	upgrader websocket.Upgrader
	stopChan chan struct{}
	stopOnce sync.Once
	logger   *zap.SugaredLogger
}

// NewTickerHub creates a hub with no connected clients.
func NewTickerHub(logger *zap.SugaredLogger) *TickerHub {
	return &TickerHub{
		clients: make(map[*wsClient]bool),
		upgrader: websocket.Upgrader{
			// The dashboard is served from arbitrary local origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// HandleWS upgrades the connection and registers the client. A newly
// connected client immediately receives the latest cached list.
func (h *TickerHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("WebSocket升级失败: %v", err)
		return
	}

	client := &wsClient{conn: conn}

	h.mu.Lock()
	h.clients[client] = true
	snapshot := h.latest
	h.mu.Unlock()

	if snapshot != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			_ = client.send(data)
		}
	}

	// Reader goroutine: we never expect client messages, but reading is what
	// detects a closed peer.
	go func() {
		defer h.drop(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish caches the list and broadcasts it to every connected client.
// Clients whose writes fail are dropped.
func (h *TickerHub) Publish(tickers []models.Ticker) {
	data, err := json.Marshal(tickers)
	if err != nil {
		h.logger.Errorf("无法序列化行情列表: %v", err)
		return
	}

	h.mu.Lock()
	h.latest = tickers
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.send(data); err != nil {
			h.drop(client)
		}
	}
}

// Latest returns the most recently published ticker list.
func (h *TickerHub) Latest() []models.Ticker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return []models.Ticker{}
	}
	return h.latest
}

// Stop disconnects all clients and stops the refresh loop.
func (h *TickerHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		_ = client.conn.Close()
		delete(h.clients, client)
	}
}

func (h *TickerHub) drop(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	_ = client.conn.Close()
}
