package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/models"
)

func TestProjectService_CreateNormalizesDocument(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProjectService(env.store, nil, env.clock.Now)
	owner := uuid.New()

	p, err := svc.Create(context.Background(), owner, " Acme Ltda ", "cnpj", "11.222.333/0001-81")
	require.NoError(t, err)

	assert.Equal(t, "Acme Ltda", p.Name)
	assert.Equal(t, models.DocumentCNPJ, p.DocumentType)
	assert.Equal(t, "11222333000181", p.DocumentNumber)
	assert.Equal(t, models.ProjectActive, p.Status)
}

func TestProjectService_CreateRejectsInvalidDocument(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProjectService(env.store, nil, env.clock.Now)

	_, err := svc.Create(context.Background(), uuid.New(), "Fulano", "CPF", "529.982.247-24")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(context.Background(), uuid.New(), "", "CPF", "529.982.247-25")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestProjectService_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewProjectService(env.store, nil, env.clock.Now)
	owner := uuid.New()
	p, err := svc.Create(ctx, owner, "Fulano", "CPF", "529.982.247-25")
	require.NoError(t, err)

	_, err = svc.Get(ctx, uuid.New(), p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Archive(ctx, uuid.New(), p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProjectService_ArchiveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewProjectService(env.store, nil, env.clock.Now)
	owner := uuid.New()
	p, err := svc.Create(ctx, owner, "Fulano", "CPF", "529.982.247-25")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		archived, err := svc.Archive(ctx, owner, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectArchived, archived.Status)
	}

	stored, err := svc.Get(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectArchived, stored.Status)
}
