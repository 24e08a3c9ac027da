package physics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *MedicalPhysicsTest) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*MedicalPhysicsTest, error)
	MarkExecuted(ctx context.Context, tenantID string, id uuid.UUID, in ExecuteInput) (bool, error)
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
	List(ctx context.Context, tenantID string, f Filter, now time.Time, limit, offset int) ([]*MedicalPhysicsTest, int, error)

	// ResetExecuted returns every REALIZADA test of the equipment to AGENDADA
	// in one statement, prefixing note to their notes.
	ResetExecuted(ctx context.Context, tenantID string, equipmentID uuid.UUID, note string) (int, error)
	// Types lists the distinct test types ever recorded for the equipment.
	Types(ctx context.Context, tenantID string, equipmentID uuid.UUID) ([]TestType, error)
	HasPending(ctx context.Context, tenantID string, equipmentID uuid.UUID, t TestType) (bool, error)
	// Latest returns the most recently created test of type t.
	Latest(ctx context.Context, tenantID string, equipmentID uuid.UUID, t TestType) (*MedicalPhysicsTest, error)
}
