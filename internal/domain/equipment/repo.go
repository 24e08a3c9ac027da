package equipment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Equipment) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Equipment, error)
	Update(ctx context.Context, e *Equipment) error
	UpdateStatus(ctx context.Context, tenantID string, id uuid.UUID, status Status) error
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
	List(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]*Equipment, int, error)
}
