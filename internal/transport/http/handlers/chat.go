package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/infra/llm"
	"github.com/startupadvisor/advisor-api/internal/transport/http/middleware"
	"github.com/startupadvisor/advisor-api/internal/usecase"
)

// ChatHandler exposes conversation management and message exchange.
type ChatHandler struct {
	chats *usecase.ChatService
}

// NewChatHandler constructs ChatHandler.
func NewChatHandler(chats *usecase.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// RegisterRoutes binds chat routes. Every route requires authentication.
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.createConversation)
	r.GET("", h.listConversations)
	r.GET("/:id", h.getConversation)
	r.DELETE("/:id", h.deleteConversation)
	r.POST("/:id/messages", h.sendMessage)
}

var conversationErrorCases = []ErrorCase{
	{Err: usecase.ErrConversationNotFound, Status: http.StatusNotFound, Message: "conversation not found"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "conversation belongs to another user"},
}

// CreateConversation godoc
// @Summary Start a conversation
// @Description Mode defaults to advisor; objection_practice simulates a
// skeptical investor. A project_id attaches the conversation to a project.
// @Tags Chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body ConversationRequest true "Conversation payload"
// @Success 201 {object} ConversationPayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/conversations [post]
func (h *ChatHandler) createConversation(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid conversation payload"))
		return
	}

	conversation, err := h.chats.CreateConversation(c.Request.Context(), userID, usecase.ConversationInput{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Mode:      domain.ConversationMode(req.Mode),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidConversationMode, Status: http.StatusBadRequest, Message: "unknown conversation mode"},
			{Err: usecase.ErrProjectNotFound, Status: http.StatusNotFound, Message: "project not found"},
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "project belongs to another user"},
		}, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	c.JSON(http.StatusCreated, newConversationPayload(*conversation))
}

func (h *ChatHandler) listConversations(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	conversations, err := h.chats.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list conversations"))
		return
	}

	payloads := make([]ConversationPayload, 0, len(conversations))
	for _, conv := range conversations {
		payloads = append(payloads, newConversationPayload(conv))
	}

	c.JSON(http.StatusOK, ConversationListResponse{Conversations: payloads, Total: len(payloads)})
}

func (h *ChatHandler) getConversation(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	conversation, messages, err := h.chats.GetConversation(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, conversationErrorCases, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	payloads := make([]MessagePayload, 0, len(messages))
	for _, m := range messages {
		payloads = append(payloads, newMessagePayload(m))
	}

	c.JSON(http.StatusOK, ConversationDetailResponse{
		Conversation: newConversationPayload(*conversation),
		Messages:     payloads,
	})
}

func (h *ChatHandler) deleteConversation(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	if err := h.chats.DeleteConversation(c.Request.Context(), userID, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, conversationErrorCases, http.StatusInternalServerError, "failed to delete conversation")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "conversation deleted"})
}

// SendMessage godoc
// @Summary Send a message and receive the assistant reply
// @Description The user message is stored even when the completion backend
// is unavailable; clients may retry to obtain a reply.
// @Tags Chat
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Conversation ID"
// @Param request body SendMessageRequest true "Message payload"
// @Success 200 {object} SendMessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/conversations/{id}/messages [post]
func (h *ChatHandler) sendMessage(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid message payload"))
		return
	}

	userMsg, reply, err := h.chats.SendMessage(c.Request.Context(), userID, c.Param("id"), req.Content)
	if err != nil {
		cases := append([]ErrorCase{
			{Err: usecase.ErrEmptyMessage, Status: http.StatusBadRequest, Message: "message content is required"},
			{Err: llm.ErrUnavailable, Status: http.StatusServiceUnavailable, Message: "assistant is temporarily unavailable, your message was saved"},
		}, conversationErrorCases...)
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to send message")
		return
	}

	c.JSON(http.StatusOK, SendMessageResponse{
		Message: newMessagePayload(*userMsg),
		Reply:   newMessagePayload(*reply),
	})
}
