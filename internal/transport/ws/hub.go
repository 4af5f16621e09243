package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
)

// Envelope is the frame pushed to subscribed clients.
type Envelope struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Hub tracks connected clients and the conversations they subscribe to. It
// implements usecase.MessageBroadcaster; delivery to a slow client drops
// that client rather than blocking the sender.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		if conns, ok := h.rooms[room]; ok {
			delete(conns, c)
			if len(conns) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	c.closeSend()
}

// subscribe adds the client to a conversation room.
func (h *Hub) subscribe(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][c] = struct{}{}
	c.rooms[conversationID] = struct{}{}
}

// unsubscribe removes the client from a conversation room.
func (h *Hub) unsubscribe(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.rooms, conversationID)
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// BroadcastMessage pushes a persisted chat message to every client
// subscribed to its conversation.
func (h *Hub) BroadcastMessage(conversationID string, message domain.ChatMessage) {
	payload, err := json.Marshal(Envelope{
		Type:           "chat.message",
		ConversationID: conversationID,
		MessageID:      message.ID,
		Role:           string(message.Role),
		Content:        message.Content,
		CreatedAt:      message.CreatedAt,
	})
	if err != nil {
		h.logger.Warn("marshal broadcast envelope failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*Client, 0, len(h.rooms[conversationID]))
	for c := range h.rooms[conversationID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if !c.enqueue(payload) {
			// Slow consumer, drop the connection.
			h.unregister(c)
			c.conn.Close()
		}
	}
}
