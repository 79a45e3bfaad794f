package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/models"
	"github.com/harryheman/slack-clone/internal/service"
	"github.com/harryheman/slack-clone/internal/snowflake"
	"github.com/harryheman/slack-clone/internal/timeline"
	"github.com/labstack/echo/v4"
)

// MessageHandler handles message endpoints for channels, conversations
// and threads.
type MessageHandler struct {
	service             *service.MessageService
	compactionThreshold time.Duration
	now                 func() time.Time
}

// NewMessageHandler creates a MessageHandler. compactionThreshold applies
// to grouped listings.
func NewMessageHandler(svc *service.MessageService, compactionThreshold time.Duration) *MessageHandler {
	return &MessageHandler{
		service:             svc,
		compactionThreshold: compactionThreshold,
		now:                 time.Now,
	}
}

type listMessagesResponse struct {
	*models.MessagePage
	Groups []dateGroup `json:"groups,omitempty"`
}

type dateGroup struct {
	DateKey string           `json:"date_key"`
	Label   string           `json:"label"`
	Entries []timeline.Entry `json:"entries"`
}

// ListMessages handles GET /api/v1/messages.
func (h *MessageHandler) ListMessages(c echo.Context) error {
	var q service.ListQuery
	var ok bool
	if q.Scope.ChannelID, ok = optionalID(c.QueryParam("channel_id")); !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel ID")
	}
	if q.Scope.ConversationID, ok = optionalID(c.QueryParam("conversation_id")); !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid conversation ID")
	}
	if q.Scope.ParentMessageID, ok = optionalID(c.QueryParam("parent_message_id")); !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid parent message ID")
	}
	q.Cursor = c.QueryParam("cursor")

	if l := c.QueryParam("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			return Error(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
		}
		q.Limit = parsed
	}

	loc := time.UTC
	if tz := c.QueryParam("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return Error(c, http.StatusBadRequest, "INVALID_TZ", "unknown time zone")
		}
		loc = l
	}

	page, err := h.service.ListMessages(c.Request().Context(), auth.GetUserID(c), q)
	if err != nil {
		return mapServiceError(c, err)
	}

	resp := listMessagesResponse{MessagePage: page}
	if c.QueryParam("group") == "true" {
		now := h.now().In(loc)
		for _, b := range timeline.Group(page.Page, h.compactionThreshold, loc) {
			resp.Groups = append(resp.Groups, dateGroup{
				DateKey: b.DateKey,
				Label:   timeline.DateLabel(b.DateKey, now),
				Entries: b.Entries,
			})
		}
	}

	return c.JSON(http.StatusOK, resp)
}

type sendMessageRequest struct {
	ChannelID       string  `json:"channel_id"`
	ConversationID  string  `json:"conversation_id"`
	ParentMessageID string  `json:"parent_message_id"`
	Body            string  `json:"body"`
	Image           *string `json:"image"`
}

// SendMessage handles POST /api/v1/messages.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	var sr service.SendRequest
	var ok bool
	if sr.Scope.ChannelID, ok = optionalID(req.ChannelID); !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel ID")
	}
	if sr.Scope.ConversationID, ok = optionalID(req.ConversationID); !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid conversation ID")
	}
	if sr.Scope.ParentMessageID, ok = optionalID(req.ParentMessageID); !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid parent message ID")
	}
	sr.Body = req.Body
	sr.Image = req.Image

	msg, err := h.service.SendMessage(c.Request().Context(), auth.GetUserID(c), sr)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, msg)
}

// GetMessage handles GET /api/v1/messages/:id.
func (h *MessageHandler) GetMessage(c echo.Context) error {
	msgID, err := snowflake.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid message ID")
	}

	msg, err := h.service.GetMessage(c.Request().Context(), auth.GetUserID(c), msgID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, msg)
}

type updateMessageRequest struct {
	Body string `json:"body"`
}

// UpdateMessage handles PATCH /api/v1/messages/:id.
func (h *MessageHandler) UpdateMessage(c echo.Context) error {
	msgID, err := snowflake.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid message ID")
	}

	var req updateMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	msg, err := h.service.UpdateMessage(c.Request().Context(), auth.GetUserID(c), msgID, req.Body)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, msg)
}

// DeleteMessage handles DELETE /api/v1/messages/:id.
func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	msgID, err := snowflake.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid message ID")
	}

	if err := h.service.DeleteMessage(c.Request().Context(), auth.GetUserID(c), msgID); err != nil {
		return mapServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
