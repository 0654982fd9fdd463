package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "spendbook/internal/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 8
)

// Hub keeps the open websocket connections of every user and pushes
// expenses:changed to all tabs of a user after a mutation.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]map[*wsClient]struct{}
	upgrader websocket.Upgrader
	logger   *applog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *applog.Logger) *Hub {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Hub{
		clients: make(map[string]map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.WithComponent(applog.ComponentWebsocket),
	}
}

// NotifyExpensesChanged implements services.ChangeNotifier. Clients whose
// buffer is full miss the message and pick the change up on their next load.
func (h *Hub) NotifyExpensesChanged(username string) {
	msg, err := json.Marshal(map[string]any{
		"type":      EventExpensesChanged,
		"timestamp": time.Now().UTC(),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[username] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping websocket message for slow client", applog.FieldUsername, username)
		}
	}
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Serve upgrades the request and blocks until the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, username string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", applog.FieldError, err.Error())
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.register(username, c)
	h.logger.DebugContext(r.Context(), "Websocket client connected", applog.FieldUsername, username)

	go c.writePump()
	c.readPump()

	h.unregister(username, c)
	h.logger.DebugContext(r.Context(), "Websocket client disconnected", applog.FieldUsername, username)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) register(username string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[username]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[username] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(username string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[username]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, username)
	}
	close(c.send)
}

// readPump discards client messages; it only exists to notice disconnects
// and to process pongs.
func (c *wsClient) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
