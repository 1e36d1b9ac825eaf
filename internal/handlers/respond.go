package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/middleware"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/validator"
)

// respondError writes the classified error. Unclassified errors are logged
// and answered with a generic 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status, code, msg := apperr.Decode(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(status, models.ErrorResponse{Error: code, Message: msg})
}

// respondBindError answers a request whose body or query failed to bind.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   apperr.CodeValidation,
		Message: validator.ErrorMessage(err),
	})
}

// currentUser returns the authenticated user, answering 401 when absent.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   apperr.CodeUnauthorized,
			Message: "user id not found",
		})
		return uuid.Nil, false
	}
	return userID, true
}

// uuidParam parses a path or query value, answering 400 when malformed.
func uuidParam(c *gin.Context, name, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   apperr.CodeValidation,
			Message: name + " must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
