package checklist

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	Conforme    Outcome = "CONFORME"
	NaoConforme Outcome = "NAO_CONFORME"
)

func (o Outcome) Valid() bool { return o == Conforme || o == NaoConforme }

// Template is the inspection list applied to every preventive maintenance of
// equipment of EquipmentType.
type Template struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TenantID      string    `db:"tenant_id" json:"-"`
	Name          string    `db:"name" json:"name"`
	EquipmentType string    `db:"equipment_type" json:"equipment_type"`
	Items         []Item    `json:"items"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Item struct {
	ID          uuid.UUID `db:"id" json:"id"`
	TemplateID  uuid.UUID `db:"template_id" json:"-"`
	Position    int       `db:"position" json:"position"`
	Description string    `db:"description" json:"description"`
}

// Result is the outcome of one item for one preventive maintenance.
type Result struct {
	ID                      uuid.UUID `db:"id" json:"id"`
	TenantID                string    `db:"tenant_id" json:"-"`
	PreventiveMaintenanceID uuid.UUID `db:"preventive_maintenance_id" json:"preventive_maintenance_id"`
	ItemID                  uuid.UUID `db:"item_id" json:"item_id"`
	ItemDescription         string    `db:"description" json:"item_description,omitempty"`
	Outcome                 Outcome   `db:"outcome" json:"outcome"`
	Observation             *string   `db:"observation" json:"observation,omitempty"`
	RecordedAt              time.Time `db:"recorded_at" json:"recorded_at"`
}

// ResultInput is what the technician submits for one item.
type ResultInput struct {
	ItemID      uuid.UUID `json:"item_id"`
	Outcome     Outcome   `json:"outcome"`
	Observation *string   `json:"observation,omitempty"`
}
