package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/services"
)

type VerifyHandler struct {
	verification *services.VerificationService
	logger       *zap.Logger
}

func NewVerifyHandler(verification *services.VerificationService, log *zap.Logger) *VerifyHandler {
	return &VerifyHandler{verification: verification, logger: logger.OrNop(log)}
}

// Verify godoc
// @Summary     Verify a hash
// @Description Public lookup of a SHA-256 hash. The hash is read from the query string, or from a JSON body on POST.
// @Tags        verify
// @Accept      json
// @Produce     json
// @Param       hash query string false "SHA-256 hash"
// @Param       request body models.VerifyRequest false "Hash (POST only)"
// @Success     200 {object} models.VerifyResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /verify [get]
// @Router      /verify [post]
func (h *VerifyHandler) Verify(c *gin.Context) {
	hash := c.Query("hash")
	if hash == "" && c.Request.Method == http.MethodPost {
		var req models.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		hash = req.Hash
	}

	resp, err := h.verification.Verify(c.Request.Context(), hash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
