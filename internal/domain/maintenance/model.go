// Package maintenance schedules and executes preventive maintenance,
// calibration and electrical safety tests, one record per occurrence.
package maintenance

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/domain/checklist"
	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
)

const (
	ServicePreventiva = "PREVENTIVA"
	ServiceCalibracao = "CALIBRACAO"
	ServiceTSE        = "TSE"
)

var validServiceTypes = map[string]bool{
	ServicePreventiva: true, ServiceCalibracao: true, ServiceTSE: true,
}

func ValidServiceType(st string) bool { return validServiceTypes[st] }

// PreventiveMaintenance maps to the preventive_maintenance table. Status only
// ever holds AGENDADA or REALIZADA.
type PreventiveMaintenance struct {
	ID                uuid.UUID            `db:"id" json:"id"`
	TenantID          string               `db:"tenant_id" json:"-"`
	EquipmentID       uuid.UUID            `db:"equipment_id" json:"equipment_id"`
	ServiceType       string               `db:"service_type" json:"service_type"`
	Status            servicerecord.Status `db:"status" json:"status"`
	ScheduledDate     time.Time            `db:"scheduled_date" json:"scheduled_date"`
	DueDate           time.Time            `db:"due_date" json:"due_date"`
	ExecutionDate     *time.Time           `db:"execution_date" json:"execution_date,omitempty"`
	PeriodicityMonths int                  `db:"periodicity_months" json:"periodicity_months"`
	ProviderID        *uuid.UUID           `db:"provider_id" json:"provider_id,omitempty"`
	Provider          *string              `db:"provider" json:"provider,omitempty"`
	Cost              *float64             `db:"cost" json:"cost,omitempty"`
	Notes             *string              `db:"notes" json:"notes,omitempty"`
	CertificateURL    *string              `db:"certificate_url" json:"certificate_url,omitempty"`
	PreviousID        *uuid.UUID           `db:"previous_id" json:"previous_id,omitempty"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `db:"updated_at" json:"updated_at"`
}

// View is a record as presented at a point in time: status carries the
// derived VENCIDA when the record is overdue.
type View struct {
	*PreventiveMaintenance
	Status       servicerecord.Status `json:"status"`
	StoredStatus servicerecord.Status `json:"stored_status"`
}

func (pm *PreventiveMaintenance) ViewAt(now time.Time) View {
	return View{
		PreventiveMaintenance: pm,
		Status:                servicerecord.Derive(pm.Status, pm.DueDate, now),
		StoredStatus:          pm.Status,
	}
}

type CreateInput struct {
	EquipmentID       uuid.UUID  `json:"equipment_id"`
	ServiceType       string     `json:"service_type"`
	ScheduledDate     time.Time  `json:"scheduled_date"`
	DueDate           time.Time  `json:"due_date"`
	PeriodicityMonths int        `json:"periodicity_months"`
	ProviderID        *uuid.UUID `json:"provider_id,omitempty"`
	Provider          *string    `json:"provider,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
}

type ExecuteInput struct {
	ExecutionDate  time.Time               `json:"execution_date"`
	Cost           *float64                `json:"cost,omitempty"`
	Notes          *string                 `json:"notes,omitempty"`
	CertificateURL *string                 `json:"certificate_url,omitempty"`
	Checklist      []checklist.ResultInput `json:"checklist,omitempty"`
}

// Execution is what the conditional execute write stores.
type Execution struct {
	ExecutionDate  time.Time
	Cost           *float64
	Notes          *string
	CertificateURL *string
}

// ExecuteResult carries the executed record and, for recurring records, the
// successor created in the same transaction.
type ExecuteResult struct {
	Executed  View  `json:"executed"`
	Successor *View `json:"successor,omitempty"`
}

type Filter struct {
	EquipmentID *uuid.UUID
	ServiceType string
	Status      servicerecord.Status
}
