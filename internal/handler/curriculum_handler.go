package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uni-plan/timetable-api/internal/service"
	"github.com/uni-plan/timetable-api/pkg/response"
)

// CurriculumHandler exposes the resolved assignment pool.
type CurriculumHandler struct {
	service *service.CurriculumService
}

// NewCurriculumHandler constructs a curriculum handler.
func NewCurriculumHandler(svc *service.CurriculumService) *CurriculumHandler {
	return &CurriculumHandler{service: svc}
}

// Resolve godoc
// @Summary Resolve a curriculum semester into required assignments
// @Tags Curricula
// @Produce json
// @Param id path string true "Curriculum ID"
// @Param semesterId path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /curricula/{id}/semesters/{semesterId}/subjects [get]
func (h *CurriculumHandler) Resolve(c *gin.Context) {
	pool, err := h.service.Resolve(c.Request.Context(), c.Param("id"), c.Param("semesterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pool, nil)
}

// Pool godoc
// @Summary Assignment pool of a timetable with scheduled-hours progress
// @Tags Curricula
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/pool [get]
func (h *CurriculumHandler) Pool(c *gin.Context) {
	pool, err := h.service.ResolveForTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pool, nil)
}
