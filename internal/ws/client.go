package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong reply from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize is the maximum inbound message size in bytes.
	maxMessageSize = 4096
)

// controlMessage is the JSON envelope sent by a feed consumer to subscribe or
// unsubscribe from delivery updates. An empty sourceId subscribes to updates
// for every source.
type controlMessage struct {
	Action   string `json:"action"`   // "subscribe" | "unsubscribe"
	SourceID string `json:"sourceId"` // "" means all sources
}

// Client represents a single WebSocket connection.
type Client struct {
	ID            string
	conn          *websocket.Conn
	subscriptions map[string]bool
	allSources    bool
	subMu         sync.RWMutex
	send          chan []byte
	hub           *Hub
}

// NewClient creates a Client for the given connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:            uuid.New().String(),
		conn:          conn,
		subscriptions: make(map[string]bool),
		send:          make(chan []byte, 256),
		hub:           hub,
	}
}

// WantsSource reports whether this client should receive updates for the
// given source.
func (c *Client) WantsSource(sourceID string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.allSources || c.subscriptions[sourceID]
}

// ReadPump pumps messages from the WebSocket connection to the hub.
// It runs in its own goroutine per client and handles subscribe / unsubscribe
// control messages.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: client %s read error: %v", c.ID, err)
			}
			break
		}

		var cm controlMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			log.Printf("ws: client %s sent invalid control message: %v", c.ID, err)
			continue
		}

		switch cm.Action {
		case "subscribe":
			c.subMu.Lock()
			if cm.SourceID == "" {
				c.allSources = true
			} else {
				c.subscriptions[cm.SourceID] = true
			}
			c.subMu.Unlock()
			log.Printf("ws: client %s subscribed to %q", c.ID, cm.SourceID)
		case "unsubscribe":
			c.subMu.Lock()
			if cm.SourceID == "" {
				c.allSources = false
			} else {
				delete(c.subscriptions, cm.SourceID)
			}
			c.subMu.Unlock()
			log.Printf("ws: client %s unsubscribed from %q", c.ID, cm.SourceID)
		default:
			log.Printf("ws: client %s unknown action %q", c.ID, cm.Action)
		}
	}
}

// WritePump pumps messages from the hub's send channel to the WebSocket
// connection. It runs in its own goroutine per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
