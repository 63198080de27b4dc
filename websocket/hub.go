package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"assetmgt/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

type broadcastMessage struct {
	company string
	payload []byte
}

// Hub fans workflow events out to the websocket clients of each company.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan broadcastMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.Mutex
	log        *zap.SugaredLogger
}

type Client struct {
	email     string
	companies []string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	once      sync.Once
}

func NewHub(lg *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan broadcastMessage, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        lg,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Infow("websocket hub started")
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mutex.Lock()
			for _, company := range client.companies {
				if _, ok := h.clients[company]; !ok {
					h.clients[company] = make(map[*Client]bool)
				}
				h.clients[company][client] = true
			}
			h.mutex.Unlock()

		case client := <-h.unregister:
			h.mutex.Lock()
			h.remove(client)
			h.mutex.Unlock()

		case bm := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients[bm.company] {
				select {
				case client.send <- bm.payload:
				default:
					h.remove(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// remove must be called with mutex held.
func (h *Hub) remove(client *Client) {
	for _, company := range client.companies {
		if clients, ok := h.clients[company]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, company)
			}
		}
	}
	client.close()
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			client.close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}

// ClientCount returns the number of connections subscribed to company.
func (h *Hub) ClientCount(company string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients[company])
}

// Publish queues ev for the company's clients. It never blocks the caller;
// events are dropped when the hub is saturated.
func (h *Hub) Publish(ev models.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Warnw("marshal event", "type", ev.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- broadcastMessage{company: ev.CompanyName, payload: data}:
	default:
		h.log.Warnw("event dropped, hub saturated", "type", ev.Type, "company", ev.CompanyName)
	}
}

// Attach registers an upgraded connection and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn, email string, companies []string) {
	client := &Client{
		email:     email,
		companies: companies,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		hub:       h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; clients never send events.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
