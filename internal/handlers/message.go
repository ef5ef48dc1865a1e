package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatroom-service/internal/repositories"
)

// MessageHandler serves the paginated message listing.
type MessageHandler struct {
	messages repositories.MessageRepository
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// ListRoomMessages handles GET /rooms/:room_id/messages?skip=&limit=.
// Messages come back newest first; paging past the end yields an empty list.
func (h *MessageHandler) ListRoomMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room id"})
		return
	}

	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repositories.DefaultMessagePageSize)))

	msgs, err := h.messages.ListByRoom(c.Request.Context(), roomID, skip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
