package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uni-plan/timetable-api/internal/service"
	appErrors "github.com/uni-plan/timetable-api/pkg/errors"
	"github.com/uni-plan/timetable-api/pkg/response"
)

// AvailabilityHandler exposes lecturer availability endpoints.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs an availability handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Overlay godoc
// @Summary Lecturer availability with occupied sessions overlaid
// @Tags Availability
// @Produce json
// @Param id path string true "Lecturer ID"
// @Success 200 {object} response.Envelope
// @Router /lecturers/{id}/availability [get]
func (h *AvailabilityHandler) Overlay(c *gin.Context) {
	overlay, err := h.service.Overlay(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overlay, nil)
}

// Replace godoc
// @Summary Replace a lecturer's availability slots
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Lecturer ID"
// @Param payload body service.ReplaceAvailabilityRequest true "Slots payload"
// @Success 200 {object} response.Envelope
// @Router /lecturers/{id}/availability [put]
func (h *AvailabilityHandler) Replace(c *gin.Context) {
	var req service.ReplaceAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slots, err := h.service.Replace(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
