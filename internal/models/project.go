package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentCPF  = "CPF"
	DocumentCNPJ = "CNPJ"

	ProjectActive   = "active"
	ProjectArchived = "archived"
)

type Project struct {
	ID             uuid.UUID
	OwnerUserID    uuid.UUID
	Name           string
	DocumentType   string
	DocumentNumber string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
