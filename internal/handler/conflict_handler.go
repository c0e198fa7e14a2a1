package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/response"
)

type conflictService interface {
	Detect(ctx context.Context, query dto.ConflictQuery) (*models.ConflictReport, error)
}

// ConflictHandler serves conflict reports.
type ConflictHandler struct {
	service conflictService
}

// NewConflictHandler constructs a conflict handler.
func NewConflictHandler(service conflictService) *ConflictHandler {
	return &ConflictHandler{service: service}
}

// Report godoc
// @Summary Scan the timetable for conflicts
// @Tags Conflicts
// @Produce json
// @Param scope query string false "period or all"
// @Param refresh query bool false "Bypass the report cache"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /conflicts [get]
func (h *ConflictHandler) Report(c *gin.Context) {
	var query dto.ConflictQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	report, err := h.service.Detect(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, map[string]interface{}{"total": len(report.Conflicts)})
}
