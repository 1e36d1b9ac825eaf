package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/fingerprint"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/services"
)

type RegistrosHandler struct {
	registros *services.RegistroService
	maxUpload int64
	logger    *zap.Logger
}

// NewRegistrosHandler builds the handler. maxUpload caps multipart request
// bodies in bytes; zero disables the cap.
func NewRegistrosHandler(registros *services.RegistroService, maxUpload int64, log *zap.Logger) *RegistrosHandler {
	return &RegistrosHandler{registros: registros, maxUpload: maxUpload, logger: logger.OrNop(log)}
}

// CheckDuplicate godoc
// @Summary     Check for a duplicate registro
// @Description Reports whether the caller already has a live registro (pendente, processando or confirmado) for the hash.
// @Tags        registros
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CheckDuplicateRequest true "SHA-256 hash"
// @Success     200 {object} models.DuplicateCheckResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /registros/check-duplicate [post]
func (h *RegistrosHandler) CheckDuplicate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CheckDuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	existing, dup, err := h.registros.CheckDuplicate(c.Request.Context(), userID, req.Hash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := models.DuplicateCheckResponse{IsDuplicate: dup}
	if dup {
		r := models.NewRegistroResponse(existing)
		resp.ExistingRegistro = &r
	}
	c.JSON(http.StatusOK, resp)
}

// Create godoc
// @Summary     Create a registro
// @Description Creates a registro in pendente. Send JSON with hash_sha256, or multipart form data with a file
// @Description whose SHA-256 is computed by the server. One credit is debited when the registro is confirmed.
// @Tags        registros
// @Accept      json,mpfd
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateRegistroRequest false "Registro (JSON)"
// @Param       file formData file false "Asset file (multipart)"
// @Success     201 {object} models.RegistroResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Router      /registros [post]
func (h *RegistrosHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateRegistroRequest
	multipart := strings.HasPrefix(c.ContentType(), "multipart/")
	var err error
	if multipart {
		if h.maxUpload > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
		}
		err = c.ShouldBind(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error:   apperr.CodeValidation,
				Message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		respondBindError(c, err)
		return
	}

	hash := req.HashSHA256
	if hash == "" && multipart {
		hash, err = hashUploadedFile(c)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	if hash == "" {
		respondError(c, h.logger, apperr.Validation("hash_sha256 or file is required"))
		return
	}

	in := services.CreateRegistroInput{
		UserID:    userID,
		NomeAtivo: req.NomeAtivo,
		TipoAtivo: req.TipoAtivo,
		Hash:      hash,
	}
	if req.ProjectID != "" {
		projectID, ok := uuidParam(c, "project_id", req.ProjectID)
		if !ok {
			return
		}
		in.ProjectID = uuid.NullUUID{UUID: projectID, Valid: true}
	}

	r, err := h.registros.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewRegistroResponse(r))
}

func hashUploadedFile(c *gin.Context) (string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", apperr.Validation("hash_sha256 or file is required")
	}
	f, err := header.Open()
	if err != nil {
		return "", apperr.Validation("failed to read uploaded file")
	}
	defer f.Close()
	return fingerprint.Compute(f)
}

// List godoc
// @Summary     List registros
// @Description Lists the caller's registros, newest first.
// @Tags        registros
// @Produce     json
// @Security    Bearer
// @Param       limit query int false "Maximum number of registros (default 50, max 200)"
// @Success     200 {object} models.RegistroListResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /registros [get]
func (h *RegistrosHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	registros, err := h.registros.List(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := models.RegistroListResponse{Registros: make([]models.RegistroResponse, len(registros))}
	for i := range registros {
		resp.Registros[i] = models.NewRegistroResponse(&registros[i])
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary     Get a registro
// @Tags        registros
// @Produce     json
// @Security    Bearer
// @Param       registro_id path string true "Registro ID (UUID)"
// @Success     200 {object} models.RegistroResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /registros/{registro_id} [get]
func (h *RegistrosHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "registro_id", c.Param("registro_id"))
	if !ok {
		return
	}

	r, err := h.registros.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.NewRegistroResponse(r))
}

// Status godoc
// @Summary     Registro processing status
// @Description Returns the registro status, its blockchain transaction when confirmed and every processing attempt.
// @Tags        registros
// @Produce     json
// @Security    Bearer
// @Param       registroId query string true "Registro ID (UUID)"
// @Success     200 {object} models.RegistroStatusResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /registro-status [get]
func (h *RegistrosHandler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	raw := c.Query("registroId")
	if raw == "" {
		respondError(c, h.logger, apperr.Validation("registroId is required"))
		return
	}
	id, ok := uuidParam(c, "registroId", raw)
	if !ok {
		return
	}

	status, err := h.registros.Status(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newStatusResponse(status))
}

func newStatusResponse(s *services.RegistroStatus) models.RegistroStatusResponse {
	resp := models.RegistroStatusResponse{
		Status:         string(s.Registro.Status),
		HashSHA256:     s.Registro.HashSHA256,
		Transaction:    models.NewTransactionResponse(s.Transacao),
		ProcessingLogs: make([]models.ProcessingLogResponse, len(s.Logs)),
	}
	if s.Registro.ErrorMessage.Valid {
		msg := s.Registro.ErrorMessage.String
		resp.ErrorMessage = &msg
	}
	if s.Transacao != nil {
		confirmedAt := s.Transacao.ConfirmedAt
		resp.ConfirmedAt = &confirmedAt
	}
	for i, l := range s.Logs {
		resp.ProcessingLogs[i] = models.ProcessingLogResponse{
			AttemptNumber: l.AttemptNumber,
			Success:       l.Success,
			ErrorMessage:  l.ErrorMessage.String,
			CreatedAt:     l.CreatedAt,
		}
	}
	return resp
}
