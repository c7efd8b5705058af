package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uni-plan/timetable-api/internal/models"
	"github.com/uni-plan/timetable-api/internal/service"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
	"github.com/uni-plan/timetable-api/pkg/response"
)

// CalendarHandler exposes the placement grid and semester session dates.
type CalendarHandler struct {
	service *service.CalendarService
}

// NewCalendarHandler constructs a calendar handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// Grid godoc
// @Summary Placement grid for a study mode
// @Tags Calendar
// @Produce json
// @Param study_mode query string true "Study mode"
// @Success 200 {object} response.Envelope
// @Router /calendar/grid [get]
func (h *CalendarHandler) Grid(c *gin.Context) {
	grid, err := h.service.Grid(c.Request.Context(), models.StudyMode(c.Query("study_mode")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// SessionBlocks godoc
// @Summary Semester session dates grouped into on-site blocks
// @Tags Calendar
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/blocks [get]
func (h *CalendarHandler) SessionBlocks(c *gin.Context) {
	blocks, err := h.service.SessionBlocks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// ListDates godoc
// @Summary Session dates of a semester
// @Tags Calendar
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/dates [get]
func (h *CalendarHandler) ListDates(c *gin.Context) {
	dates, err := h.service.ListSemesterDates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dates, nil)
}

// ReplaceDates godoc
// @Summary Replace the session dates of a semester
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Semester ID"
// @Param payload body service.ReplaceSemesterDatesRequest true "Dates payload"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/dates [put]
func (h *CalendarHandler) ReplaceDates(c *gin.Context) {
	var req service.ReplaceSemesterDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	dates, err := h.service.ReplaceSemesterDates(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dates, nil)
}
