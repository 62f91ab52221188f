package handlers

import (
	"net/http"

	"nva-backoffice/internal/middleware"
	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messaging *services.MessagingService
}

type CreateConversationRequest struct {
	ParticipantIDs []uint `json:"participant_ids" binding:"required,min=1"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

func NewMessageHandler(messaging *services.MessagingService) *MessageHandler {
	return &MessageHandler{messaging: messaging}
}

func (h *MessageHandler) Conversations(c *gin.Context) {
	list, err := h.messaging.Conversations(c.Request.Context(), middleware.GetAgentID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h *MessageHandler) Search(c *gin.Context) {
	list, err := h.messaging.Search(c.Request.Context(), middleware.GetAgentID(c), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h *MessageHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	// The caller is always a participant
	conv, err := h.messaging.CreateConversation(c.Request.Context(), middleware.GetAgentID(c), req.ParticipantIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

func (h *MessageHandler) Conversation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	conv, err := h.messaging.Conversation(c.Request.Context(), middleware.GetAgentID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// Messages lists a conversation oldest first. Reading it marks the
// caller's unread messages as read.
func (h *MessageHandler) Messages(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	list, err := h.messaging.Messages(c.Request.Context(), middleware.GetAgentID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

func (h *MessageHandler) Send(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	// Only participants may post
	msg, err := h.messaging.Send(c.Request.Context(), middleware.GetAgentID(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *MessageHandler) Message(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.messaging.Message(c.Request.Context(), middleware.GetAgentID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.messaging.DeleteMessage(c.Request.Context(), middleware.GetAgentID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messaging.UnreadCount(c.Request.Context(), middleware.GetAgentID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
