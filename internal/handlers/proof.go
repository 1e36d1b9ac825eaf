package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/opentimestamps"
	"webmarcas-backend/internal/services"
)

type ProofHandler struct {
	proofs *services.ProofService
	logger *zap.Logger
}

func NewProofHandler(proofs *services.ProofService, log *zap.Logger) *ProofHandler {
	return &ProofHandler{proofs: proofs, logger: logger.OrNop(log)}
}

// Download godoc
// @Summary     Download a registro's timestamp proof
// @Description Returns the detached OpenTimestamps (.ots) proof of a confirmed registro.
// @Tags        registros
// @Produce     application/vnd.opentimestamps.ots
// @Security    Bearer
// @Param       registro_id path string true "Registro ID (UUID)"
// @Success     200 {file} file
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /registros/{registro_id}/proof [get]
func (h *ProofHandler) Download(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "registro_id", c.Param("registro_id"))
	if !ok {
		return
	}

	proof, err := h.proofs.Proof(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ots"`, id))
	c.Data(http.StatusOK, opentimestamps.ProofContentType, proof)
}
