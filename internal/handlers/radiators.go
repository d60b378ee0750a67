package handlers

import (
	"errors"
	"net/http"
	"strings"

	"radiator_control/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errGetStates       = "failed to load states"
	errApplyMode       = "failed to apply mode"
	errUnavailable     = "MQTT broker unavailable"
	errUnknownDevice   = "unknown device"
	errLoadDevices     = "failed to load devices"
	errLoadOptions     = "failed to load options"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// knownDevice reports whether name is registered. On a lookup error the
// 500 response has already been written.
func (h *Handler) knownDevice(c *gin.Context, name string) (bool, error) {
	names, err := h.services.KnownNames(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadDevices, "devices_load_failed", err)
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// modeRequest selects every device when Device is empty.
type modeRequest struct {
	Mode   string `json:"mode" binding:"required"`
	Device string `json:"device,omitempty"`
}

// SetModeRequest is an exported model for Swagger docs of the setMode payload.
type SetModeRequest struct {
	// Mode to apply, e.g. COMFORT, ECO, HORS_GEL, OFF
	Mode string `json:"mode" example:"COMFORT"`
	// Single device to address; omit for all devices
	Device string `json:"device,omitempty" example:"Salon"`
}

type optionRequest struct {
	Device   string `json:"device" binding:"required"`
	Disabled bool   `json:"disabled"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Refresh and return device states
// @Description  Queries every registered device over MQTT. Falls back to the last known states when the broker is down (cached=true).
// @Tags         radiators
// @Produce      json
// @Success      200  {object}  service.StatesView
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/states [get]
// @Security     BearerAuth
func (h *Handler) getStates(c *gin.Context) {
	view, err := h.services.Refresh(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStates, "states_refresh_failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Summary      Apply a mode
// @Description  Disabled devices always receive ECO.
// @Tags         radiators
// @Accept       json
// @Produce      json
// @Param        body  body      SetModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}  "applied_modes, disabled"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/mode [post]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	ctx := c.Request.Context()

	var targets []string
	if device := strings.TrimSpace(req.Device); device != "" {
		known, err := h.knownDevice(c, device)
		if err != nil {
			return
		}
		if !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": errUnknownDevice})
			return
		}
		targets = []string{device}
	}

	applied, err := h.services.ApplyMode(ctx, service.ModeParams{
		Mode:    req.Mode,
		Targets: targets,
		Source:  service.SourceAPI,
	})
	switch {
	case errors.Is(err, service.ErrInvalidMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrTransportUnavailable):
		h.logAndJSONError(c, http.StatusServiceUnavailable, errUnavailable, "mode_apply_unavailable", err, "mode", req.Mode)
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errApplyMode, "mode_apply_failed", err, "mode", req.Mode)
		return
	}

	disabled, err := h.services.DisabledMap(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadOptions, "options_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied_modes": applied, "disabled": disabled})
}

// @Summary      Per-device options
// @Tags         radiators
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "disabled"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/options [get]
// @Security     BearerAuth
func (h *Handler) getOptions(c *gin.Context) {
	disabled, err := h.services.DisabledMap(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadOptions, "options_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disabled": disabled})
}

// @Summary      Enable or disable a device
// @Description  Disabling sends ECO to the device right away when the broker is reachable.
// @Tags         radiators
// @Accept       json
// @Produce      json
// @Param        body  body      optionRequest  true  "Option payload"
// @Success      200   {object}  map[string]interface{}  "disabled, applied_modes"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/options [post]
// @Security     BearerAuth
func (h *Handler) setOption(c *gin.Context) {
	var req optionRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	ctx := c.Request.Context()

	applied, err := h.services.SetDisabled(ctx, req.Device, req.Disabled)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errUnknownDevice})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadOptions, "option_update_failed", err, "device", req.Device)
		return
	}

	disabled, err := h.services.DisabledMap(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadOptions, "options_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disabled": disabled, "applied_modes": applied})
}
