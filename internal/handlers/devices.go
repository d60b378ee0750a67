package handlers

import (
	"errors"
	"net/http"

	"radiator_control/internal/service"

	"github.com/gin-gonic/gin"
)

const errDevices = "failed to update devices"

type registerRequest struct {
	Name      string `json:"name" binding:"required"`
	IPAddress string `json:"ip_address,omitempty"`
}

type renameRequest struct {
	OldName string `json:"old_name" binding:"required"`
	NewName string `json:"new_name" binding:"required"`
}

// deviceError maps registry errors to HTTP codes.
func (h *Handler) deviceError(c *gin.Context, logKey string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDeviceName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDeviceExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errDevices, logKey, err)
	}
}

// @Summary      List registered devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "devices"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.ListDevices(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDevices, "devices_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// @Summary      Register a device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Device"
// @Success      201   {object}  models.Device
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/devices [post]
// @Security     BearerAuth
func (h *Handler) registerDevice(c *gin.Context) {
	var req registerRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	d, err := h.services.Register(c.Request.Context(), req.Name, req.IPAddress)
	if err != nil {
		h.deviceError(c, "device_register_failed", err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// @Summary      Rename a device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body      renameRequest  true  "Old and new name"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/devices [patch]
// @Security     BearerAuth
func (h *Handler) renameDevice(c *gin.Context) {
	var req renameRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.Rename(c.Request.Context(), req.OldName, req.NewName); err != nil {
		h.deviceError(c, "device_rename_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": req.NewName})
}

// @Summary      Remove a device
// @Tags         devices
// @Produce      json
// @Param        name  path      string  true  "Device name"
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/devices/{name} [delete]
// @Security     BearerAuth
func (h *Handler) removeDevice(c *gin.Context) {
	name := c.Param("name")
	if err := h.services.Remove(c.Request.Context(), name); err != nil {
		h.deviceError(c, "device_remove_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}
