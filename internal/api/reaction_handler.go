package api

import (
	"net/http"

	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/service"
	"github.com/harryheman/slack-clone/internal/snowflake"
	"github.com/labstack/echo/v4"
)

// ReactionHandler handles message reaction endpoints.
type ReactionHandler struct {
	service *service.ReactionService
}

// NewReactionHandler creates a ReactionHandler.
func NewReactionHandler(svc *service.ReactionService) *ReactionHandler {
	return &ReactionHandler{service: svc}
}

type toggleReactionRequest struct {
	Value string `json:"value"`
}

// ToggleReaction handles POST /api/v1/messages/:id/reactions. The
// response says whether the reaction was added or removed.
func (h *ReactionHandler) ToggleReaction(c echo.Context) error {
	msgID, err := snowflake.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid message ID")
	}

	var req toggleReactionRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	result, err := h.service.Toggle(c.Request().Context(), msgID, auth.GetUserID(c), req.Value)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
