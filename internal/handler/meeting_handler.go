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

type meetingService interface {
	List(ctx context.Context, query dto.MeetingListQuery) ([]models.MeetingDetail, error)
	Create(ctx context.Context, req dto.CreateMeetingRequest, actorID string) (*dto.MeetingResponse, error)
	Reassign(ctx context.Context, id string, req dto.ReassignMeetingRequest, actorID string) (*dto.MeetingResponse, error)
	Delete(ctx context.Context, id string, actorID string) error
}

// MeetingHandler exposes validated meeting writes.
type MeetingHandler struct {
	service meetingService
}

// NewMeetingHandler constructs a meeting handler.
func NewMeetingHandler(service meetingService) *MeetingHandler {
	return &MeetingHandler{service: service}
}

// List godoc
// @Summary List meetings of the active period
// @Tags Meetings
// @Produce json
// @Param teacher_id query string false "Teacher ID"
// @Param section_id query string false "Section ID"
// @Param room_id query string false "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	var query dto.MeetingListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	meetings, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, map[string]interface{}{"count": len(meetings)})
}

// Create godoc
// @Summary Schedule a meeting after constraint validation
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body dto.CreateMeetingRequest true "Meeting payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	var req dto.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Reassign godoc
// @Summary Reassign a meeting
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body dto.ReassignMeetingRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /meetings/{id} [put]
func (h *MeetingHandler) Reassign(c *gin.Context) {
	var req dto.ReassignMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}
	result, err := h.service.Reassign(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Delete godoc
// @Summary Remove a meeting and reverse its load
// @Tags Meetings
// @Param id path string true "Meeting ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id} [delete]
func (h *MeetingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
