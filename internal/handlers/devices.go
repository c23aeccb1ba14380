package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/services"
	"github.com/charlesng35/awards/pkg/response"
)

type DeviceHandler struct {
	registry *services.DeviceRegistry
}

func NewDeviceHandler(registry *services.DeviceRegistry) *DeviceHandler {
	return &DeviceHandler{registry: registry}
}

type registerDeviceRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
}

// POST /api/devices/register
//
// Registration is advisory: storage failures are logged by the registry and
// the client still receives a 200 with a zero result.
func (h *DeviceHandler) Register(c *gin.Context) {
	var req registerDeviceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result := h.registry.RegisterDevice(requestContext(c), currentUserID(c), req.Fingerprint, services.DeviceMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	response.Success(c, http.StatusOK, result)
}
