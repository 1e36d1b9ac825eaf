package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/services"
)

type ProjectsHandler struct {
	projects *services.ProjectService
	logger   *zap.Logger
}

func NewProjectsHandler(projects *services.ProjectService, log *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{projects: projects, logger: logger.OrNop(log)}
}

// CreateProject godoc
// @Summary     Create a project
// @Description Creates a brand holder (person by CPF or company by CNPJ) to group registros.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateProjectRequest true "Project"
// @Success     201 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	project, err := h.projects.Create(c.Request.Context(), userID, req.Name, req.DocumentType, req.DocumentNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewProjectResponse(project))
}

// ListProjects godoc
// @Summary     List projects
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	projects, err := h.projects.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := models.ProjectListResponse{Projects: make([]models.ProjectResponse, len(projects))}
	for i := range projects {
		resp.Projects[i] = models.NewProjectResponse(&projects[i])
	}
	c.JSON(http.StatusOK, resp)
}

// GetProject godoc
// @Summary     Get a project
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     200 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", c.Param("project_id"))
	if !ok {
		return
	}

	project, err := h.projects.Get(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

// ArchiveProject godoc
// @Summary     Archive a project
// @Description Archived projects accept no new registros. Existing registros are untouched.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     200 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id}/archive [post]
func (h *ProjectsHandler) ArchiveProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id", c.Param("project_id"))
	if !ok {
		return
	}

	project, err := h.projects.Archive(c.Request.Context(), userID, projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}
