package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/document"
	"webmarcas-backend/internal/logger"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

// ProjectService manages the brand holders (people or companies) that group
// a user's registros.
type ProjectService struct {
	projects store.ProjectStore
	logger   *zap.Logger
	now      Clock
}

func NewProjectService(projects store.ProjectStore, log *zap.Logger, now Clock) *ProjectService {
	return &ProjectService{projects: projects, logger: logger.OrNop(log), now: orNow(now)}
}

func (s *ProjectService) Create(ctx context.Context, ownerID uuid.UUID, name, docType, docNumber string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	docType = strings.ToUpper(strings.TrimSpace(docType))
	digits, err := document.Normalize(docType, docNumber)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Project{
		ID:             uuid.New(),
		OwnerUserID:    ownerID,
		Name:           name,
		DocumentType:   docType,
		DocumentNumber: digits,
		Status:         models.ProjectActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, storeErr(err, "project")
	}

	s.logger.Info("project created",
		zap.String("project_id", p.ID.String()),
		zap.String("owner_user_id", ownerID.String()),
	)
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	return s.projects.ListProjects(ctx, ownerID)
}

// Get returns the project only to its owner.
func (s *ProjectService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Project, error) {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, storeErr(err, "project")
	}
	if p.OwnerUserID != ownerID {
		return nil, apperr.NotFound("project not found")
	}
	return p, nil
}

// Archive hides the project from new registros. Existing registros keep
// their project reference.
func (s *ProjectService) Archive(ctx context.Context, ownerID, id uuid.UUID) (*models.Project, error) {
	p, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if p.Status == models.ProjectArchived {
		return p, nil
	}

	now := s.now()
	if err := s.projects.UpdateProjectStatus(ctx, p.ID, models.ProjectArchived, now); err != nil {
		return nil, storeErr(err, "project")
	}
	p.Status = models.ProjectArchived
	p.UpdatedAt = now
	return p, nil
}
