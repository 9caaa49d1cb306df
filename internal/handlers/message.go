// internal/handlers/message.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/utils"
)

type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// POST /messages
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	message, err := h.messageService.Send(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, message)
}

// GET /messages/with/:id
func (h *MessageHandler) Conversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, ok := pathID(c, "id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	messages, total, err := h.messageService.Conversation(c.Request.Context(), userID, otherID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(messages, total, params))
}

// GET /chats
func (h *MessageHandler) ListChats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	chats, err := h.messageService.ListChats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, chats)
}

// POST /chats/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}

	updated, err := h.messageService.MarkRead(c.Request.Context(), userID, chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"marked_read": updated})
}

// GET /messages/unread-count
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.messageService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"unread": count})
}

// DELETE /messages/:id
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.messageService.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(204)
}
