package corrective

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists tickets. Transition methods are conditional on the
// current status and report false when no row matched.
type Repository interface {
	Create(ctx context.Context, cm *CorrectiveMaintenance) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*CorrectiveMaintenance, error)
	List(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]*CorrectiveMaintenance, int, error)
	Accept(ctx context.Context, tenantID string, id, assignee uuid.UUID, at time.Time) (bool, error)
	Resolve(ctx context.Context, tenantID string, id uuid.UUID, in ResolveInput, at time.Time) (bool, error)
	Close(ctx context.Context, tenantID string, id uuid.UUID, at time.Time) (bool, error)
}
