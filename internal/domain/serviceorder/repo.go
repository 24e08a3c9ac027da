package serviceorder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, o *ServiceOrder) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*ServiceOrder, error)
	// Transition moves the order from -> to only if it is still in from.
	// It reports false when no row matched.
	Transition(ctx context.Context, tenantID string, id uuid.UUID, from, to Status, at time.Time) (bool, error)
	List(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]*ServiceOrder, int, error)
}
