// Package stream pushes completed agent results to WebSocket subscribers
// so operator dashboards can follow assessments and investigations live.
package stream

import (
	"context"
	"log"
	"sync"
	"time"
)

// Channel names clients can subscribe to.
const (
	ChannelAssessments    = "assessments"
	ChannelInvestigations = "investigations"
	ChannelTranslations   = "translations"
)

// Message is a single frame pushed to subscribers.
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Hub maintains active WebSocket connections and routes agent results to
// channel subscribers.
type Hub struct {
	clients       map[*Client]bool
	broadcast     chan *Message
	register      chan *Client
	unregister    chan *Client
	subscriptions map[string]map[*Client]bool

	mu sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		broadcast:     make(chan *Message, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[Stream Hub] Client registered: %s", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for channel := range h.subscriptions {
					delete(h.subscriptions[channel], client)
				}
			}
			h.mu.Unlock()
			log.Printf("[Stream Hub] Client unregistered: %s", client.id)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-ctx.Done():
			log.Println("[Stream Hub] Shutting down")
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// deliver sends a message to the channel's subscribers, or to everyone
// when the message carries no channel.
func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients
	if message.Channel != "" {
		subscribers, ok := h.subscriptions[message.Channel]
		if !ok {
			return
		}
		targets = subscribers
	}

	for client := range targets {
		select {
		case client.send <- message:
		default:
			// Client send buffer full, skip
			log.Printf("[Stream Hub] Client %s send buffer full, skipping message", client.id)
		}
	}
}

// Subscribe adds a client to the given channels
func (h *Hub) Subscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		if h.subscriptions[channel] == nil {
			h.subscriptions[channel] = make(map[*Client]bool)
		}
		h.subscriptions[channel][client] = true
	}

	log.Printf("[Stream Hub] Client %s subscribed to: %v", client.id, channels)
}

// Unsubscribe removes a client from the given channels
func (h *Hub) Unsubscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		if subscribers, ok := h.subscriptions[channel]; ok {
			delete(subscribers, client)
		}
	}

	log.Printf("[Stream Hub] Client %s unsubscribed from: %v", client.id, channels)
}

// Publish queues an agent result for delivery to a channel's subscribers.
func (h *Hub) Publish(channel string, data interface{}) {
	message := &Message{
		Type:      "update",
		Channel:   channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      data,
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("[Stream Hub] Broadcast buffer full, dropping message for channel: %s", channel)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
