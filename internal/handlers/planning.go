package handlers

import (
	"errors"
	"io"
	"net/http"

	"radiator_control/internal/schedule"

	"github.com/gin-gonic/gin"
)

const (
	errLoadPlanning = "failed to load planning"
	errSavePlanning = "failed to save planning"
	maxPlanningBody = 64 << 10
)

// @Summary      Weekly planning
// @Description  COMFORT ranges per weekday; ECO outside them.
// @Tags         planning
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/planning [get]
// @Security     BearerAuth
func (h *Handler) getPlanning(c *gin.Context) {
	w, err := h.services.Planning.Get(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadPlanning, "planning_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// @Summary      Replace the weekly planning
// @Description  Body example: {"monday":[{"start":"07:00","end":"09:00"}]}. "24:00" is only valid as an end.
// @Tags         planning
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/planning [put]
// @Security     BearerAuth
func (h *Handler) putPlanning(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPlanningBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	w, err := schedule.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.services.Replace(c.Request.Context(), w)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errSavePlanning, "planning_save_failed", err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
