package api

import (
	"net/http"

	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/service"
	"github.com/harryheman/slack-clone/internal/snowflake"
	"github.com/labstack/echo/v4"
)

// ConversationHandler handles direct conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
}

// NewConversationHandler creates a ConversationHandler.
func NewConversationHandler(svc *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: svc}
}

type createConversationRequest struct {
	MemberID string `json:"member_id"`
}

// CreateOrGet handles POST /api/v1/workspaces/:id/conversations.
func (h *ConversationHandler) CreateOrGet(c echo.Context) error {
	workspaceID, err := snowflake.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid workspace ID")
	}

	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	memberID, err := snowflake.Parse(req.MemberID)
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_MEMBER", "invalid member_id")
	}

	conv, err := h.service.CreateOrGet(c.Request().Context(), workspaceID, auth.GetUserID(c), memberID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, conv)
}
