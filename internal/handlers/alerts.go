package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/services"
)

type AlertsHandler struct {
	alerts  *services.AlertService
	monitor *services.MonitorService
	logger  *zap.Logger
}

func NewAlertsHandler(alerts *services.AlertService, monitor *services.MonitorService, log *zap.Logger) *AlertsHandler {
	return &AlertsHandler{alerts: alerts, monitor: monitor, logger: logger.OrNop(log)}
}

// Create godoc
// @Summary     Record a system alert (admin)
// @Tags        alerts
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.AlertRequest true "Alert"
// @Success     200 {object} models.AlertResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /alert [post]
func (h *AlertsHandler) Create(c *gin.Context) {
	var req models.AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	alert, err := h.alerts.Create(c.Request.Context(), services.AlertInput{
		Level:    models.AlertLevel(req.Level),
		Title:    req.Title,
		Message:  req.Message,
		Service:  req.Service,
		Metadata: req.Metadata,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.AlertResponse{Success: true, Alert: *alert})
}

// List godoc
// @Summary     List system alerts (admin)
// @Tags        alerts
// @Produce     json
// @Security    Bearer
// @Param       limit query int false "Maximum number of alerts (default 50, max 200)"
// @Param       level query string false "Level filter" Enums(INFO, WARN, ERROR, CRITICAL)
// @Success     200 {object} models.AlertListResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /alert [get]
func (h *AlertsHandler) List(c *gin.Context) {
	alerts, err := h.alerts.List(c.Request.Context(), queryLimit(c), c.Query("level"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	c.JSON(http.StatusOK, models.AlertListResponse{Alerts: alerts})
}

// Monitor godoc
// @Summary     Run the health monitor
// @Description Runs every health check and records an alert for each condition that fires.
// @Description Answers 200 when the system is healthy and 503 otherwise; the body is the same in both cases.
// @Tags        alerts
// @Produce     json
// @Param       X-Cron-Secret header string false "Shared cron secret"
// @Security    Bearer
// @Success     200 {object} models.MonitorResult
// @Failure     503 {object} models.MonitorResult
// @Router      /monitor-system [post]
func (h *AlertsHandler) Monitor(c *gin.Context) {
	result, err := h.monitor.Run(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if !result.SystemHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
