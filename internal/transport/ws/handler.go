package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/infra/security"
	"github.com/startupadvisor/advisor-api/internal/usecase"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The REST layer enforces CORS; the socket endpoint accepts any origin
	// and relies on token auth.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades authenticated requests to websocket connections.
type Handler struct {
	hub    *Hub
	tokens *security.TokenService
	chats  *usecase.ChatService
	logger *zap.Logger
}

// NewHandler constructs the websocket handler.
func NewHandler(hub *Hub, tokens *security.TokenService, chats *usecase.ChatService, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, tokens: tokens, chats: chats, logger: logger}
}

// Serve authenticates the request via the token query parameter and starts
// the read and write pumps. Browsers cannot set headers on websocket
// dials, hence the query parameter.
func (h *Handler) Serve(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.tokens.Verify(rawToken)
	if err != nil || claims.Type != security.TokenTypeAccess {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	userID := claims.UserID
	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		rooms:  make(map[string]struct{}),
		logger: h.logger,
		authorize: func(conversationID string) bool {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _, err := h.chats.GetConversation(ctx, userID, conversationID)
			return err == nil
		},
	}

	h.hub.register(client)

	go client.writePump()
	go client.readPump()
}
