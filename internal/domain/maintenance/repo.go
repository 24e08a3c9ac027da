package maintenance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, pm *PreventiveMaintenance) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*PreventiveMaintenance, error)
	// MarkExecuted moves an AGENDADA record to REALIZADA. It reports false
	// when the record is absent or no longer AGENDADA.
	MarkExecuted(ctx context.Context, tenantID string, id uuid.UUID, e Execution) (bool, error)
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
	// List resolves a VENCIDA filter against now.
	List(ctx context.Context, tenantID string, f Filter, now time.Time, limit, offset int) ([]*PreventiveMaintenance, int, error)
}
