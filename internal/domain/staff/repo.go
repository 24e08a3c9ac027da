package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Member, error)
	SetActive(ctx context.Context, tenantID string, id uuid.UUID, active bool) error
	List(ctx context.Context, tenantID, role string, limit, offset int) ([]*Member, int, error)
}
