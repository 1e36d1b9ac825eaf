package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/services"
)

// maxWebhookBody bounds the payload kept in webhook_logs.
const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	payments *services.PaymentService
	logger   *zap.Logger
}

func NewWebhookHandler(payments *services.PaymentService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{payments: payments, logger: logger.OrNop(log)}
}

// HandlePayment godoc
// @Summary     Payment gateway webhook
// @Description Receives credit purchase notifications. PAYMENT_CONFIRMED and PAYMENT_RECEIVED add credits once per
// @Description payment id; other events are acknowledged. Authenticated by the shared token in the Authorization header.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Authorization header string true "Shared webhook token"
// @Param       request body models.PaymentWebhookEvent true "Event"
// @Success     200 {object} map[string]string "status"
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /webhooks/payments [post]
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, h.logger, apperr.Validation("failed to read request body"))
		return
	}

	var evt models.PaymentWebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		respondError(c, h.logger, apperr.Validation("failed to parse event"))
		return
	}
	if evt.ID == "" || evt.Event == "" {
		respondError(c, h.logger, apperr.Validation("id and event are required"))
		return
	}

	outcome, err := h.payments.HandleEvent(c.Request.Context(), evt, body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome})
}
