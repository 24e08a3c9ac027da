package equipment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAtivo        Status = "ATIVO"
	StatusInativo      Status = "INATIVO"
	StatusEmManutencao Status = "EM_MANUTENCAO"
	StatusDescartado   Status = "DESCARTADO"
)

var validStatuses = map[Status]bool{
	StatusAtivo: true, StatusInativo: true, StatusEmManutencao: true, StatusDescartado: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// Equipment maps to the equipment table.
type Equipment struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	TenantID        string      `db:"tenant_id" json:"-"`
	Name            string      `db:"name" json:"name"`
	EquipmentType   string      `db:"equipment_type" json:"equipment_type"`
	Manufacturer    *string     `db:"manufacturer" json:"manufacturer,omitempty"`
	Model           *string     `db:"model" json:"model,omitempty"`
	SerialNumber    *string     `db:"serial_number" json:"serial_number,omitempty"`
	Location        *string     `db:"location" json:"location,omitempty"`
	Criticality     Criticality `db:"criticality" json:"criticality"`
	Status          Status      `db:"status" json:"status"`
	ContingencyPlan *string     `db:"contingency_plan" json:"contingency_plan,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status        Status
	Criticality   Criticality
	EquipmentType string
	Search        string
}
