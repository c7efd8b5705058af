package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uni-plan/timetable-api/internal/middleware"
	"github.com/uni-plan/timetable-api/internal/models"
	"github.com/uni-plan/timetable-api/internal/service"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
	"github.com/uni-plan/timetable-api/pkg/response"
)

// ScheduleEntryHandler exposes placement endpoints.
type ScheduleEntryHandler struct {
	service *service.ScheduleEntryService
}

// NewScheduleEntryHandler constructs a schedule entry handler.
func NewScheduleEntryHandler(svc *service.ScheduleEntryService) *ScheduleEntryHandler {
	return &ScheduleEntryHandler{service: svc}
}

// respondError surfaces the blocking entry alongside collision errors so the
// UI can highlight it.
func respondError(c *gin.Context, err error) {
	var conflictErr *models.EntryConflictError
	if errors.As(err, &conflictErr) {
		middleware.SetMeta(c, "conflict", conflictErr.Conflict)
		response.ErrorWithMeta(c, err, middleware.ExtractMeta(c))
		return
	}
	response.Error(c, err)
}

// ListByTimetable godoc
// @Summary List schedule entries of a timetable
// @Tags ScheduleEntries
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/entries [get]
func (h *ScheduleEntryHandler) ListByTimetable(c *gin.Context) {
	entries, err := h.service.ListByTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ListByLecturer godoc
// @Summary List a lecturer's schedule entries
// @Tags ScheduleEntries
// @Produce json
// @Param id path string true "Lecturer ID"
// @Success 200 {object} response.Envelope
// @Router /lecturers/{id}/entries [get]
func (h *ScheduleEntryHandler) ListByLecturer(c *gin.Context) {
	entries, err := h.service.ListByLecturer(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Create godoc
// @Summary Place a schedule entry
// @Tags ScheduleEntries
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Collision with an existing entry"
// @Router /entries [post]
func (h *ScheduleEntryHandler) Create(c *gin.Context) {
	var req service.CreateScheduleEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update or move a schedule entry
// @Tags ScheduleEntries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body service.UpdateScheduleEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Collision with an existing entry"
// @Router /entries/{id} [put]
func (h *ScheduleEntryHandler) Update(c *gin.Context) {
	var req service.UpdateScheduleEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete a schedule entry
// @Tags ScheduleEntries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 204
// @Router /entries/{id} [delete]
func (h *ScheduleEntryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
