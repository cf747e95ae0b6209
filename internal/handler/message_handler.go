package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mindbridge/internal/service"
)

// MessageHandler handles messaging and read-state endpoints.
type MessageHandler struct {
	svc service.MessageService
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// SendMessageRequest is a new message in a conversation.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// MarkAllReadResponse reports how many messages changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// UnreadCountResponse is the caller's unread total.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// Send godoc
// @Summary Send a message
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param request body SendMessageRequest true "Message"
// @Success 201 {object} model.Message
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (h *MessageHandler) Send(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	conversationID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	msg, err := h.svc.Send(c.Request().Context(), who, conversationID, req.Content)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// List godoc
// @Summary List messages, oldest first
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {array} model.Message
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (h *MessageHandler) List(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	conversationID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	msgs, err := h.svc.List(c.Request().Context(), who, conversationID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

// MarkAsRead godoc
// @Summary Mark one message from the other party as read
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param messageId path string true "Message ID"
// @Success 200 {object} model.Message
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /conversations/{id}/messages/{messageId}/read [patch]
func (h *MessageHandler) MarkAsRead(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	conversationID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	messageID, err := uuidParam(c, "messageId")
	if err != nil {
		return err
	}
	msg, err := h.svc.MarkAsRead(c.Request().Context(), who, conversationID, messageID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, msg)
}

// MarkAllAsRead godoc
// @Summary Mark every message from the other party as read
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} MarkAllReadResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /conversations/{id}/messages/mark-all-read [patch]
func (h *MessageHandler) MarkAllAsRead(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	conversationID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	n, err := h.svc.MarkConversationAsRead(c.Request().Context(), who, conversationID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, MarkAllReadResponse{Updated: n})
}

// UnreadCount godoc
// @Summary Unread messages from the other party across the caller's conversations
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UnreadCountResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /messages/unread-count [get]
func (h *MessageHandler) UnreadCount(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), who)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, UnreadCountResponse{Count: n})
}
