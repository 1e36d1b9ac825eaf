package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/middleware"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/services"
)

type CreditsHandler struct {
	credits *services.CreditService
	logger  *zap.Logger
}

func NewCreditsHandler(credits *services.CreditService, log *zap.Logger) *CreditsHandler {
	return &CreditsHandler{credits: credits, logger: logger.OrNop(log)}
}

// Balance godoc
// @Summary     Credit balance
// @Tags        credits
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.BalanceResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /credits [get]
func (h *CreditsHandler) Balance(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	balance, err := h.credits.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.BalanceResponse{UserID: userID.String(), AvailableCredits: balance})
}

// Ledger godoc
// @Summary     Credit ledger
// @Description Lists the caller's ledger entries, newest first.
// @Tags        credits
// @Produce     json
// @Security    Bearer
// @Param       limit query int false "Maximum number of entries (default 50, max 200)"
// @Success     200 {object} models.LedgerResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /credits/ledger [get]
func (h *CreditsHandler) Ledger(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	entries, err := h.credits.ListEntries(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := models.LedgerResponse{Entries: make([]models.LedgerEntryResponse, len(entries))}
	for i := range entries {
		resp.Entries[i] = models.NewLedgerEntryResponse(&entries[i])
	}
	c.JSON(http.StatusOK, resp)
}

// Mutate godoc
// @Summary     Apply a credit operation (admin)
// @Description add, refund and expire take a positive amount; adjust takes a signed amount and records the acting admin.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       operation path string true "Operation" Enums(add, adjust, refund, expire)
// @Param       request body models.CreditMutationRequest true "Mutation"
// @Success     200 {object} models.LedgerEntryResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /admin/credits/{operation} [post]
func (h *CreditsHandler) Mutate(op models.LedgerOperation) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreditMutationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		userID, ok := uuidParam(c, "user_id", req.UserID)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		var (
			entry *models.CreditLedgerEntry
			err   error
		)
		switch op {
		case models.OperationAdd:
			entry, err = h.credits.Add(ctx, userID, req.Amount, req.Reason, "", req.ReferenceID)
		case models.OperationRefund:
			entry, err = h.credits.Refund(ctx, userID, req.Amount, req.Reason, "", req.ReferenceID)
		case models.OperationExpire:
			entry, err = h.credits.Expire(ctx, userID, req.Amount, req.Reason)
		case models.OperationAdjust:
			actorID, _ := middleware.UserID(c)
			entry, err = h.credits.Adjust(ctx, actorID, userID, req.Amount, req.Reason)
		default:
			err = apperr.Validation("unsupported operation %q", op)
		}
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, models.NewLedgerEntryResponse(entry))
	}
}

// Reconcile godoc
// @Summary     Reconcile a cached balance (admin)
// @Description Recomputes available_credits from the ledger and repairs drift.
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID (UUID)"
// @Success     200 {object} models.ReconcileResult
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /admin/credits/{user_id}/reconcile [post]
func (h *CreditsHandler) Reconcile(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id", c.Param("user_id"))
	if !ok {
		return
	}
	if userID == uuid.Nil {
		respondError(c, h.logger, apperr.Validation("user_id is required"))
		return
	}

	result, err := h.credits.Reconcile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
