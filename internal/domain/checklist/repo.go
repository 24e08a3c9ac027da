package checklist

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, tenantID string, id uuid.UUID) (*Template, error)
	// TemplateForEquipmentType returns the most recent template for the type.
	TemplateForEquipmentType(ctx context.Context, tenantID, equipmentType string) (*Template, error)
	ListTemplates(ctx context.Context, tenantID, equipmentType string, limit, offset int) ([]*Template, int, error)
	SaveResults(ctx context.Context, results []Result) error
	ResultsFor(ctx context.Context, tenantID string, preventiveID uuid.UUID) ([]Result, error)
}
