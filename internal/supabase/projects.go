package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

const projectColumns = `id, owner_user_id, name, document_type, document_number, status, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID, &p.OwnerUserID, &p.Name, &p.DocumentType, &p.DocumentNumber,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DatabaseClient) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.OwnerUserID, p.Name, p.DocumentType, p.DocumentNumber, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := scanProject(d.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err, "project")
	}
	return p, nil
}

func (d *DatabaseClient) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (d *DatabaseClient) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE projects
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, status, at, id)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	return nil
}
