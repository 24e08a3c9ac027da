// Package corrective handles unscheduled repair tickets from opening to
// administrative close.
package corrective

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/domain/equipment"
	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

type Status string

const (
	StatusAberto        Status = "ABERTO"
	StatusEmAtendimento Status = "EM_ATENDIMENTO"
	StatusResolvido     Status = "RESOLVIDO"
	StatusFechado       Status = "FECHADO"
)

// next holds the only forward move out of each status.
var next = map[Status]Status{
	StatusAberto:        StatusEmAtendimento,
	StatusEmAtendimento: StatusResolvido,
	StatusResolvido:     StatusFechado,
}

// ValidateTransition allows exactly one step forward.
func ValidateTransition(from, to Status) error {
	if n, ok := next[from]; ok && n == to {
		return nil
	}
	return apperr.Validation("transição inválida de %s para %s", from, to)
}

type Urgency string

const (
	UrgencyBaixa   Urgency = "BAIXA"
	UrgencyMedia   Urgency = "MEDIA"
	UrgencyAlta    Urgency = "ALTA"
	UrgencyCritica Urgency = "CRITICA"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyBaixa, UrgencyMedia, UrgencyAlta, UrgencyCritica:
		return true
	}
	return false
}

// CorrectiveMaintenance maps to the corrective_maintenance table.
type CorrectiveMaintenance struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	TenantID         string     `db:"tenant_id" json:"-"`
	EquipmentID      uuid.UUID  `db:"equipment_id" json:"equipment_id"`
	Description      string     `db:"description" json:"description"`
	Urgency          Urgency    `db:"urgency" json:"urgency"`
	Status           Status     `db:"status" json:"status"`
	OpenedAt         time.Time  `db:"opened_at" json:"opened_at"`
	SLADeadline      time.Time  `db:"sla_deadline" json:"sla_deadline"`
	OpenedByID       *uuid.UUID `db:"opened_by_id" json:"opened_by_id,omitempty"`
	ReporterName     *string    `db:"reporter_name" json:"reporter_name,omitempty"`
	ReporterContact  *string    `db:"reporter_contact" json:"reporter_contact,omitempty"`
	AssignedToID     *uuid.UUID `db:"assigned_to_id" json:"assigned_to_id,omitempty"`
	AcceptedAt       *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	Diagnosis        *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Solution         *string    `db:"solution" json:"solution,omitempty"`
	PartsUsed        *string    `db:"parts_used" json:"parts_used,omitempty"`
	TimeSpentMinutes *int       `db:"time_spent_minutes" json:"time_spent_minutes,omitempty"`
	Cost             *float64   `db:"cost" json:"cost,omitempty"`
	ClosedAt         *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	FinalizedAt      *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Breached reports whether the ticket missed its acceptance deadline as of
// now. It is computed on read and never stored.
func (cm *CorrectiveMaintenance) Breached(now time.Time) bool {
	if cm.AcceptedAt != nil {
		return cm.AcceptedAt.After(cm.SLADeadline)
	}
	return cm.Status == StatusAberto && now.After(cm.SLADeadline)
}

// View is a ticket as shown to clients, enriched with its equipment's
// criticality.
type View struct {
	*CorrectiveMaintenance
	Criticality     equipment.Criticality `json:"criticality"`
	SLABreached     bool                  `json:"sla_breached"`
	ContingencyPlan *string               `json:"contingency_plan,omitempty"`
}

func newView(cm *CorrectiveMaintenance, eq *equipment.Equipment, now time.Time) View {
	v := View{
		CorrectiveMaintenance: cm,
		Criticality:           eq.Criticality,
		SLABreached:           cm.Breached(now),
	}
	active := cm.Status == StatusAberto || cm.Status == StatusEmAtendimento
	if active && eq.Criticality.RequiresContingencyPlan() {
		v.ContingencyPlan = eq.ContingencyPlan
	}
	return v
}

type OpenInput struct {
	EquipmentID     uuid.UUID `json:"equipment_id"`
	Description     string    `json:"description"`
	Urgency         Urgency   `json:"urgency"`
	ReporterName    *string   `json:"reporter_name,omitempty"`
	ReporterContact *string   `json:"reporter_contact,omitempty"`
}

type AcceptInput struct {
	AssignedToID uuid.UUID `json:"assigned_to_id"`
}

type ResolveInput struct {
	Diagnosis        *string  `json:"diagnosis,omitempty"`
	Solution         string   `json:"solution"`
	PartsUsed        *string  `json:"parts_used,omitempty"`
	TimeSpentMinutes *int     `json:"time_spent_minutes,omitempty"`
	Cost             *float64 `json:"cost,omitempty"`
}

type Filter struct {
	Status      Status
	Urgency     Urgency
	EquipmentID *uuid.UUID
}
