package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatroom-service/internal/rabbitmq"
	"chatroom-service/internal/repositories"
	"chatroom-service/internal/telemetry"
)

// InviteRoutingKey routes invitation events to the out-of-process mailer.
const InviteRoutingKey = "notifications.invite"

// InviteEnvelope is consumed by the mailer worker.
type InviteEnvelope struct {
	Email  string `json:"email"`
	RoomID string `json:"chat_room_id"`
	Sender string `json:"sender_id,omitempty"`
}

// RoomHandler serves the read-only room endpoints and invitation dispatch.
type RoomHandler struct {
	rooms     repositories.RoomRepository
	publisher rabbitmq.Publisher
	audit     *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository, publisher rabbitmq.Publisher, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{rooms: rooms, publisher: publisher, audit: audit}
}

// ListRooms handles GET /rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom handles GET /rooms/:room_id.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	room, err := h.rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat room"})
		return
	}
	c.JSON(http.StatusOK, room)
}

// ListRoomsForUser handles GET /users/:user_id/rooms.
func (h *RoomHandler) ListRoomsForUser(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
		return
	}

	rooms, err := h.rooms.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// InviteToRoom handles POST /rooms/:room_id/invite. Mail dispatch is an
// external collaborator: this side only publishes the invitation event.
func (h *RoomHandler) InviteToRoom(c *gin.Context) {
	roomID := c.Param("room_id")

	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.rooms.Get(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat room"})
		return
	}

	envelope := InviteEnvelope{Email: req.Email, RoomID: roomID}
	if uid := userIDFromContext(c); uid != nil {
		envelope.Sender = *uid
	}
	if err := h.publisher.Publish(c.Request.Context(), InviteRoutingKey, envelope); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to dispatch invitation"})
		return
	}

	h.emitAudit(c, "INFO", "chat room invitation dispatched")
	c.JSON(http.StatusOK, gin.H{"status": "invitation sent"})
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
