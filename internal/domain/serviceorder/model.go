// Package serviceorder keeps the printable work order that accompanies every
// preventive record and corrective ticket. Its status is tracked on its own
// and is not kept in step with the parent record.
package serviceorder

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

type Status string

const (
	StatusAberta     Status = "ABERTA"
	StatusEmExecucao Status = "EM_EXECUCAO"
	StatusConcluida  Status = "CONCLUIDA"
)

var transitions = map[Status][]Status{
	StatusAberta:     {StatusEmExecucao},
	StatusEmExecucao: {StatusConcluida},
	StatusConcluida:  {},
}

// ValidateTransition checks that to directly follows from.
func ValidateTransition(from, to Status) error {
	allowed, ok := transitions[from]
	if !ok {
		return apperr.Validation("status de origem desconhecido: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return apperr.Validation("transição inválida: %s -> %s", from, to)
}

type ServiceOrder struct {
	ID                      uuid.UUID  `db:"id" json:"id"`
	TenantID                string     `db:"tenant_id" json:"-"`
	Number                  int64      `db:"number" json:"number"`
	PreventiveMaintenanceID *uuid.UUID `db:"preventive_maintenance_id" json:"preventive_maintenance_id,omitempty"`
	CorrectiveMaintenanceID *uuid.UUID `db:"corrective_maintenance_id" json:"corrective_maintenance_id,omitempty"`
	EquipmentID             uuid.UUID  `db:"equipment_id" json:"equipment_id"`
	Status                  Status     `db:"status" json:"status"`
	StartedAt               *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt             *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// Code is the printable identifier, e.g. OS-000042.
func (o *ServiceOrder) Code() string {
	return fmt.Sprintf("OS-%06d", o.Number)
}

func (o *ServiceOrder) validateParent() error {
	if (o.PreventiveMaintenanceID == nil) == (o.CorrectiveMaintenanceID == nil) {
		return apperr.Validation("ordem de serviço deve referenciar exatamente uma manutenção")
	}
	return nil
}

type Filter struct {
	Status      Status
	EquipmentID *uuid.UUID
}
