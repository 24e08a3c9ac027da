package maintenance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicaleng/cmms/internal/domain/checklist"
	"github.com/clinicaleng/cmms/internal/domain/equipment"
	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
	"github.com/clinicaleng/cmms/internal/domain/serviceorder"
	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/clock"
	"github.com/clinicaleng/cmms/internal/platform/db"
	"github.com/clinicaleng/cmms/internal/platform/plan"
)

type EquipmentLookup interface {
	Lookup(ctx context.Context, tenantID string, id uuid.UUID) (*equipment.Equipment, error)
}

type OrderOpener interface {
	OpenForPreventive(ctx context.Context, tenantID string, preventiveID, equipmentID uuid.UUID) (*serviceorder.ServiceOrder, error)
}

type ChecklistRecorder interface {
	RecordResults(ctx context.Context, tenantID, equipmentType string, preventiveID uuid.UUID, inputs []checklist.ResultInput) error
}

type BulkConfig struct {
	MaxItems int
	Timeout  time.Duration
}

func DefaultBulkConfig() BulkConfig {
	return BulkConfig{MaxItems: 100, Timeout: 60 * time.Second}
}

type Service struct {
	repo       Repository
	equipment  EquipmentLookup
	orders     OrderOpener
	checklists ChecklistRecorder
	tx         db.TxRunner
	clock      clock.Clock
	bulk       BulkConfig
	logger     zerolog.Logger
}

func NewService(repo Repository, eq EquipmentLookup, orders OrderOpener, checklists ChecklistRecorder,
	tx db.TxRunner, clk clock.Clock, bulk BulkConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		equipment:  eq,
		orders:     orders,
		checklists: checklists,
		tx:         tx,
		clock:      clk,
		bulk:       bulk,
		logger:     logger,
	}
}

func validateSchedule(st string, scheduled, due time.Time, periodicity int) error {
	if !ValidServiceType(st) {
		return apperr.Validation("tipo de serviço inválido: %s", st)
	}
	if scheduled.IsZero() {
		return apperr.Validation("data agendada é obrigatória")
	}
	if due.IsZero() {
		return apperr.Validation("data de vencimento é obrigatória")
	}
	return servicerecord.ValidatePeriodicity(periodicity)
}

// Create schedules one occurrence and opens its service order. A due date
// earlier than the scheduled date is accepted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*View, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if err := plan.RequireServiceType(ctx, in.ServiceType); err != nil {
		return nil, err
	}
	if err := validateSchedule(in.ServiceType, in.ScheduledDate, in.DueDate, in.PeriodicityMonths); err != nil {
		return nil, err
	}

	var pm *PreventiveMaintenance
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		pm, err = s.schedule(ctx, tenantID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	v := pm.ViewAt(s.clock.Now())
	return &v, nil
}

func (s *Service) schedule(ctx context.Context, tenantID string, in CreateInput) (*PreventiveMaintenance, error) {
	if _, err := s.equipment.Lookup(ctx, tenantID, in.EquipmentID); err != nil {
		return nil, err
	}
	pm := &PreventiveMaintenance{
		TenantID:          tenantID,
		EquipmentID:       in.EquipmentID,
		ServiceType:       in.ServiceType,
		Status:            servicerecord.Agendada,
		ScheduledDate:     in.ScheduledDate,
		DueDate:           in.DueDate,
		PeriodicityMonths: in.PeriodicityMonths,
		ProviderID:        in.ProviderID,
		Provider:          in.Provider,
		Notes:             in.Notes,
	}
	if err := s.insert(ctx, pm); err != nil {
		return nil, err
	}
	return pm, nil
}

func (s *Service) insert(ctx context.Context, pm *PreventiveMaintenance) error {
	if err := s.repo.Create(ctx, pm); err != nil {
		return err
	}
	_, err := s.orders.OpenForPreventive(ctx, pm.TenantID, pm.ID, pm.EquipmentID)
	return err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	pm, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	v := pm.ViewAt(s.clock.Now())
	return &v, nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]View, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	items, total, err := s.repo.List(ctx, tenantID, f, now, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]View, 0, len(items))
	for _, pm := range items {
		views = append(views, pm.ViewAt(now))
	}
	return views, total, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, id)
}

func validateExecution(in *ExecuteInput, now time.Time) error {
	if in.ExecutionDate.IsZero() {
		in.ExecutionDate = now
	}
	if in.Cost != nil && *in.Cost < 0 {
		return apperr.Validation("custo não pode ser negativo")
	}
	return nil
}

// Execute marks an AGENDADA record REALIZADA, records its checklist and, for
// recurring records, schedules the successor, all in one transaction.
func (s *Service) Execute(ctx context.Context, id uuid.UUID, in ExecuteInput) (*ExecuteResult, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateExecution(&in, s.clock.Now()); err != nil {
		return nil, err
	}

	var res *ExecuteResult
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		res, err = s.executeOne(ctx, tenantID, id, in, "")
		return err
	})
	return res, err
}

// executeOne performs the execution inside the caller's transaction. When
// batchType is set the record must be of that type; otherwise the plan gate
// is checked against the record's own type.
func (s *Service) executeOne(ctx context.Context, tenantID string, id uuid.UUID, in ExecuteInput, batchType string) (*ExecuteResult, error) {
	pm, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if batchType != "" {
		if pm.ServiceType != batchType {
			return nil, apperr.Validation("registro é do tipo %s, lote é %s", pm.ServiceType, batchType)
		}
	} else if err := plan.RequireServiceType(ctx, pm.ServiceType); err != nil {
		return nil, err
	}
	if err := servicerecord.CanExecute(pm.Status); err != nil {
		return nil, err
	}

	exec := Execution{
		ExecutionDate:  in.ExecutionDate,
		Cost:           in.Cost,
		Notes:          in.Notes,
		CertificateURL: in.CertificateURL,
	}
	ok, err := s.repo.MarkExecuted(ctx, tenantID, id, exec)
	if err != nil {
		return nil, apperr.Internal("registrar execução", err)
	}
	if !ok {
		return nil, apperr.Conflict("manutenção já foi executada por outra requisição")
	}
	pm.Status = servicerecord.Realizada
	pm.ExecutionDate = &in.ExecutionDate
	if in.Cost != nil {
		pm.Cost = in.Cost
	}
	if in.Notes != nil {
		pm.Notes = in.Notes
	}
	if in.CertificateURL != nil {
		pm.CertificateURL = in.CertificateURL
	}

	if len(in.Checklist) > 0 {
		eq, err := s.equipment.Lookup(ctx, tenantID, pm.EquipmentID)
		if err != nil {
			return nil, err
		}
		if err := s.checklists.RecordResults(ctx, tenantID, eq.EquipmentType, pm.ID, in.Checklist); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	res := &ExecuteResult{Executed: pm.ViewAt(now)}

	scheduled, due, recurring := servicerecord.NextOccurrence(in.ExecutionDate, pm.PeriodicityMonths)
	if recurring {
		next := &PreventiveMaintenance{
			TenantID:          tenantID,
			EquipmentID:       pm.EquipmentID,
			ServiceType:       pm.ServiceType,
			Status:            servicerecord.Agendada,
			ScheduledDate:     scheduled,
			DueDate:           due,
			PeriodicityMonths: pm.PeriodicityMonths,
			ProviderID:        pm.ProviderID,
			Provider:          pm.Provider,
			PreviousID:        &pm.ID,
		}
		if err := s.insert(ctx, next); err != nil {
			return nil, err
		}
		v := next.ViewAt(now)
		res.Successor = &v
	}

	evt := s.logger.Info().
		Str("tenant_id", tenantID).
		Str("preventive_id", pm.ID.String()).
		Str("equipment_id", pm.EquipmentID.String()).
		Str("from", string(servicerecord.Agendada)).
		Str("to", string(servicerecord.Realizada))
	if res.Successor != nil {
		evt = evt.Str("successor_id", res.Successor.ID.String())
	}
	evt.Msg("preventive maintenance executed")

	return res, nil
}
