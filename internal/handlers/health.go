package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/monitoring"
	"github.com/charlesng35/awards/pkg/response"
)

type HealthHandler struct {
	manager *monitoring.HealthManager
	jobs    *monitoring.JobTracker
}

func NewHealthHandler(manager *monitoring.HealthManager, jobs *monitoring.JobTracker) *HealthHandler {
	return &HealthHandler{manager: manager, jobs: jobs}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.manager.EvaluateReadiness(requestContext(c))
	c.JSON(statusFor(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checked_at": report.CheckedAt,
	})
}

// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	report := h.manager.EvaluateLiveness(requestContext(c))
	c.JSON(statusFor(report), report)
}

// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	report := h.manager.EvaluateReadiness(requestContext(c))
	c.JSON(statusFor(report), report)
}

// GET /api/admin/health
//
// Always 200 so the admin console can render degraded states.
func (h *HealthHandler) Admin(c *gin.Context) {
	report := h.manager.Evaluate(requestContext(c))
	response.Success(c, http.StatusOK, gin.H{
		"report":      report,
		"maintenance": h.jobs.Jobs(),
	})
}

func statusFor(report monitoring.HealthReport) int {
	if report.Success {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
