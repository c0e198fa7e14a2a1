package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mnuel1/spacio-backend/internal/dto"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error)
}

// ExportHandler streams timetable exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs an export handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Timetable godoc
// @Summary Download the active period timetable
// @Tags Export
// @Produce octet-stream
// @Param format query string false "csv, pdf, xlsx or ics"
// @Param teacher_id query string false "Teacher ID"
// @Param section_id query string false "Section ID"
// @Param room_id query string false "Room ID"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetable/export [get]
func (h *ExportHandler) Timetable(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
