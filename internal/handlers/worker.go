package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/services"
)

// WorkerHandler exposes the lifecycle commits to an external anchoring
// worker. Each call is one database transaction.
type WorkerHandler struct {
	registros *services.RegistroService
	logger    *zap.Logger
}

func NewWorkerHandler(registros *services.RegistroService, log *zap.Logger) *WorkerHandler {
	return &WorkerHandler{registros: registros, logger: logger.OrNop(log)}
}

// Start godoc
// @Summary     Start processing a registro (admin)
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Param       registro_id path string true "Registro ID (UUID)"
// @Success     200 {object} models.RegistroResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /admin/registros/{registro_id}/start [post]
func (h *WorkerHandler) Start(c *gin.Context) {
	id, ok := uuidParam(c, "registro_id", c.Param("registro_id"))
	if !ok {
		return
	}

	r, err := h.registros.CommitStart(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.NewRegistroResponse(r))
}

// Confirm godoc
// @Summary     Confirm a registro (admin)
// @Description Stores the blockchain transaction, marks the registro confirmado and debits one credit atomically.
// @Description Re-delivering the confirmation of a confirmed registro returns it unchanged.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       registro_id path string true "Registro ID (UUID)"
// @Param       request body models.ConfirmRegistroRequest true "Anchoring result"
// @Success     200 {object} models.RegistroStatusResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /admin/registros/{registro_id}/confirm [post]
func (h *WorkerHandler) Confirm(c *gin.Context) {
	id, ok := uuidParam(c, "registro_id", c.Param("registro_id"))
	if !ok {
		return
	}
	var req models.ConfirmRegistroRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	r, t, err := h.registros.CommitConfirmation(c.Request.Context(), id, services.Confirmation{
		TxHash:          req.TxHash,
		Network:         req.Network,
		TimestampMethod: req.TimestampMethod,
		ProofData:       req.ProofData,
		ProofURL:        req.ProofURL,
		BlockNumber:     req.BlockNumber,
		Confirmations:   req.Confirmations,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newStatusResponse(&services.RegistroStatus{Registro: r, Transacao: t}))
}

// Fail godoc
// @Summary     Record a failed attempt (admin)
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       registro_id path string true "Registro ID (UUID)"
// @Param       request body models.FailRegistroRequest true "Failure"
// @Success     200 {object} models.RegistroResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /admin/registros/{registro_id}/fail [post]
func (h *WorkerHandler) Fail(c *gin.Context) {
	id, ok := uuidParam(c, "registro_id", c.Param("registro_id"))
	if !ok {
		return
	}
	var req models.FailRegistroRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	r, err := h.registros.CommitFailure(c.Request.Context(), id, req.ErrorMessage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.NewRegistroResponse(r))
}
