package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mnuel1/spacio-backend/internal/dto"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/response"
)

type autoScheduleService interface {
	Run(ctx context.Context, req dto.AutoScheduleRequest, actorID string) (*dto.AutoScheduleResult, error)
	PlanBlocks(req dto.BlockPlanRequest) (*dto.BlockPlanResponse, error)
}

// ScheduleHandler exposes bulk scheduling endpoints.
type ScheduleHandler struct {
	service autoScheduleService
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(service autoScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// AutoSchedule godoc
// @Summary Regenerate the active period timetable
// @Description An empty body regenerates every teacher. teacherIds limits the run to those teachers.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.AutoScheduleRequest false "Run options"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedules/auto [post]
func (h *ScheduleHandler) AutoSchedule(c *gin.Context) {
	var req dto.AutoScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid auto-schedule payload"))
		return
	}
	result, err := h.service.Run(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// PlanBlocks godoc
// @Summary Preview how weekly hours split into blocks
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.BlockPlanRequest true "Hours"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/blocks [post]
func (h *ScheduleHandler) PlanBlocks(c *gin.Context) {
	var req dto.BlockPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid block plan payload"))
		return
	}
	result, err := h.service.PlanBlocks(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
