package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/lazyrhythm/hookfy/internal/webhook/delivery"
)

// DeliveryUpdate is the message sent to WebSocket subscribers whenever the
// dispatcher settles the delivery status of an event.
type DeliveryUpdate struct {
	EventID    string             `json:"eventId"`
	SourceID   string             `json:"sourceId"`
	SourceName string             `json:"sourceName"`
	Title      string             `json:"title"`
	Status     string             `json:"status"` // success | failed | filtered
	Outcomes   []delivery.Outcome `json:"outcomes,omitempty"`
}

// Hub manages the lifecycle of WebSocket clients and broadcasts delivery
// updates to subscribers. It is safe for concurrent use.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	mu         sync.RWMutex
}

type broadcastMsg struct {
	sourceID string
	data     []byte
}

// NewHub allocates and initialises a Hub. Call Run() in a goroutine to start
// the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan broadcastMsg, 256),
	}
}

// Run is the hub's main event loop. It must be executed in a dedicated
// goroutine. It stops when all channels are drained and the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("ws: client %s registered", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("ws: client %s unregistered", client.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if client.WantsSource(msg.sourceID) {
					select {
					case client.send <- msg.data:
					default:
						// Slow consumer: drop the message to avoid blocking.
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastDelivery encodes the update as JSON and enqueues it for delivery
// to every client subscribed to the update's source (or to all sources).
func (h *Hub) BroadcastDelivery(update DeliveryUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("ws: failed to marshal delivery update: %v", err)
		return
	}
	h.broadcast <- broadcastMsg{sourceID: update.SourceID, data: data}
}

// Register enqueues a new client for addition to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister enqueues a client for removal from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}
