// Package physics tracks medical physics tests on radiological equipment and
// invalidates them when the equipment is repaired.
package physics

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
)

type TestType string

const (
	TypeControleQualidade        TestType = "CONTROLE_QUALIDADE"
	TypeLevantamentoRadiometrico TestType = "LEVANTAMENTO_RADIOMETRICO"
	TypeRadiacaoFuga             TestType = "RADIACAO_FUGA"
	TypeTesteAceitacao           TestType = "TESTE_ACEITACAO"
)

func (t TestType) Valid() bool {
	switch t {
	case TypeControleQualidade, TypeLevantamentoRadiometrico, TypeRadiacaoFuga, TypeTesteAceitacao:
		return true
	}
	return false
}

const (
	// InvalidatedNote prefixes the notes of tests reset by a corrective repair.
	InvalidatedNote = "Teste invalidado: manutenção corretiva realizada, reagendar."
	// GeneratedNote marks tests created by the invalidation rule.
	GeneratedNote = "Gerado automaticamente após manutenção corretiva."
	// RetestWindow is how long after a repair a regenerated test falls due.
	RetestWindow = 30 * 24 * time.Hour
)

// MedicalPhysicsTest maps to the medical_physics_test table.
type MedicalPhysicsTest struct {
	ID                uuid.UUID            `db:"id" json:"id"`
	TenantID          string               `db:"tenant_id" json:"-"`
	EquipmentID       uuid.UUID            `db:"equipment_id" json:"equipment_id"`
	Type              TestType             `db:"type" json:"type"`
	Status            servicerecord.Status `db:"status" json:"status"`
	ScheduledDate     time.Time            `db:"scheduled_date" json:"scheduled_date"`
	DueDate           time.Time            `db:"due_date" json:"due_date"`
	ExecutionDate     *time.Time           `db:"execution_date" json:"execution_date,omitempty"`
	PeriodicityMonths int                  `db:"periodicity_months" json:"periodicity_months"`
	ProviderID        *uuid.UUID           `db:"provider_id" json:"provider_id,omitempty"`
	Provider          *string              `db:"provider" json:"provider,omitempty"`
	Notes             *string              `db:"notes" json:"notes,omitempty"`
	ReportURL         *string              `db:"report_url" json:"report_url,omitempty"`
	SystemGenerated   bool                 `db:"system_generated" json:"system_generated"`
	PreviousID        *uuid.UUID           `db:"previous_id" json:"previous_id,omitempty"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `db:"updated_at" json:"updated_at"`
}

type View struct {
	*MedicalPhysicsTest
	Status       servicerecord.Status `json:"status"`
	StoredStatus servicerecord.Status `json:"stored_status"`
}

func (t *MedicalPhysicsTest) ViewAt(now time.Time) View {
	return View{
		MedicalPhysicsTest: t,
		Status:             servicerecord.Derive(t.Status, t.DueDate, now),
		StoredStatus:       t.Status,
	}
}

type CreateInput struct {
	EquipmentID       uuid.UUID  `json:"equipment_id"`
	Type              TestType   `json:"type"`
	ScheduledDate     time.Time  `json:"scheduled_date"`
	DueDate           time.Time  `json:"due_date"`
	PeriodicityMonths int        `json:"periodicity_months"`
	ProviderID        *uuid.UUID `json:"provider_id,omitempty"`
	Provider          *string    `json:"provider,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
}

type ExecuteInput struct {
	ExecutionDate time.Time `json:"execution_date"`
	Notes         *string   `json:"notes,omitempty"`
	ReportURL     *string   `json:"report_url,omitempty"`
}

type ExecuteResult struct {
	Executed  View  `json:"executed"`
	Successor *View `json:"successor,omitempty"`
}

type Filter struct {
	EquipmentID *uuid.UUID
	Type        TestType
	Status      servicerecord.Status
}

// InvalidationResult counts what one invalidation changed.
type InvalidationResult struct {
	Reset   int `json:"reset"`
	Created int `json:"created"`
}
