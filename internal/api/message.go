package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/messaging"
	"github.com/leaselink/leaselink/internal/middleware"
	"github.com/leaselink/leaselink/internal/models"
	"go.uber.org/zap"
)

// MessageHandler exposes the conversation engine over HTTP. The acting
// user always comes from the JWT, never from the request body or path —
// you cannot send or read mail as someone else.
type MessageHandler struct {
	engine *messaging.Engine
	logger *zap.Logger
}

func NewMessageHandler(engine *messaging.Engine, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{engine: engine, logger: logger}
}

type sendMessageRequest struct {
	RecipientID     uuid.UUID          `json:"recipient_id" binding:"required"`
	PropertyID      *uuid.UUID         `json:"property_id"`
	LeaseID         *uuid.UUID         `json:"lease_id"`
	ParentMessageID *int64             `json:"parent_message_id"`
	Content         string             `json:"content" binding:"required"`
	Subject         string             `json:"subject"`
	MessageType     models.MessageType `json:"message_type"`
}

// Send handles POST /v1/messages
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.engine.Send(c.Request.Context(), middleware.GetUserID(c), messaging.SendInput{
		RecipientID:     req.RecipientID,
		PropertyID:      req.PropertyID,
		LeaseID:         req.LeaseID,
		ParentMessageID: req.ParentMessageID,
		Content:         req.Content,
		Subject:         req.Subject,
		MessageType:     req.MessageType,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// ListAll handles GET /v1/messages
func (h *MessageHandler) ListAll(c *gin.Context) {
	h.list(c, h.engine.ListAll)
}

// ListReceived handles GET /v1/messages/received
func (h *MessageHandler) ListReceived(c *gin.Context) {
	h.list(c, h.engine.ListReceived)
}

// ListSent handles GET /v1/messages/sent
func (h *MessageHandler) ListSent(c *gin.Context) {
	h.list(c, h.engine.ListSent)
}

// ListUnread handles GET /v1/messages/unread
func (h *MessageHandler) ListUnread(c *gin.Context) {
	h.list(c, h.engine.ListUnread)
}

// Conversations handles GET /v1/messages/conversations
func (h *MessageHandler) Conversations(c *gin.Context) {
	summaries, err := h.engine.Conversations(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Conversation handles GET /v1/messages/conversation/:otherUserId
func (h *MessageHandler) Conversation(c *gin.Context) {
	otherID, err := uuid.Parse(c.Param("otherUserId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	views, err := h.engine.Conversation(c.Request.Context(), middleware.GetUserID(c), otherID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Get handles GET /v1/messages/:id
//
// Not a pure read: when the recipient opens an unread message, it comes
// back marked read.
func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}
	view, err := h.engine.Get(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListReplies handles GET /v1/messages/:id/replies
func (h *MessageHandler) ListReplies(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}
	views, err := h.engine.ListReplies(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Search handles GET /v1/messages/search?q=term
func (h *MessageHandler) Search(c *gin.Context) {
	views, err := h.engine.Search(c.Request.Context(), middleware.GetUserID(c), c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Stats handles GET /v1/messages/stats
func (h *MessageHandler) Stats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type markReadRequest struct {
	MessageIDs []int64 `json:"message_ids" binding:"required"`
}

// MarkRead handles PUT /v1/messages/mark-read
//
// Best effort: the response lists which ids actually flipped, so a
// caller can see what was skipped without the call failing.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flipped, err := h.engine.MarkRead(c.Request.Context(), middleware.GetUserID(c), req.MessageIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": flipped})
}

// MarkAllFromSender handles PUT /v1/messages/mark-all-read/:senderId
func (h *MessageHandler) MarkAllFromSender(c *gin.Context) {
	senderID, err := uuid.Parse(c.Param("senderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sender ID"})
		return
	}
	n, err := h.engine.MarkAllFromSender(c.Request.Context(), middleware.GetUserID(c), senderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": n})
}

// Delete handles DELETE /v1/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}
	if err := h.engine.Delete(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListByProperty handles GET /v1/properties/:id/messages
func (h *MessageHandler) ListByProperty(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property ID"})
		return
	}
	views, err := h.engine.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// ListByLease handles GET /v1/leases/:id/messages
func (h *MessageHandler) ListByLease(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lease ID"})
		return
	}
	views, err := h.engine.ListByLease(c.Request.Context(), leaseID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *MessageHandler) list(c *gin.Context, fn func(ctx context.Context, userID uuid.UUID) ([]models.MessageView, error)) {
	views, err := fn(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *MessageHandler) messageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return 0, false
	}
	return id, true
}
