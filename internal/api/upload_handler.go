package api

import (
	"net/http"

	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/service"
	"github.com/harryheman/slack-clone/internal/snowflake"
	"github.com/labstack/echo/v4"
)

// UploadHandler handles image upload endpoints.
type UploadHandler struct {
	service *service.UploadService
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

type uploadURLRequest struct {
	ContentType string `json:"content_type"`
}

// GenerateUploadURL handles POST /api/v1/workspaces/:id/uploads.
func (h *UploadHandler) GenerateUploadURL(c echo.Context) error {
	workspaceID, err := snowflake.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid workspace ID")
	}

	var req uploadURLRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	target, err := h.service.GenerateUploadURL(c.Request().Context(), workspaceID, auth.GetUserID(c), req.ContentType)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, target)
}

// UploadImage handles POST /api/v1/workspaces/:id/images with a multipart
// "file" field.
func (h *UploadHandler) UploadImage(c echo.Context) error {
	workspaceID, err := snowflake.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid workspace ID")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
	}

	src, err := file.Open()
	if err != nil {
		return Error(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
	defer src.Close()

	key, err := h.service.UploadImage(c.Request().Context(), workspaceID, auth.GetUserID(c),
		file.Size, file.Header.Get("Content-Type"), src)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{"key": key})
}
