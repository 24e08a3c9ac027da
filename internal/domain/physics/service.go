package physics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicaleng/cmms/internal/domain/equipment"
	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/clock"
	"github.com/clinicaleng/cmms/internal/platform/db"
	"github.com/clinicaleng/cmms/internal/platform/plan"
)

type EquipmentLookup interface {
	Lookup(ctx context.Context, tenantID string, id uuid.UUID) (*equipment.Equipment, error)
}

type Service struct {
	repo      Repository
	equipment EquipmentLookup
	tx        db.TxRunner
	clock     clock.Clock
	logger    zerolog.Logger
}

func NewService(repo Repository, eq EquipmentLookup, tx db.TxRunner, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{repo: repo, equipment: eq, tx: tx, clock: clk, logger: logger}
}

// gate resolves the tenant and checks the plan includes physics tests.
func (s *Service) gate(ctx context.Context) (string, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return "", err
	}
	if err := plan.RequireFeature(ctx, plan.FeaturePhysicsTests); err != nil {
		return "", err
	}
	return tenantID, nil
}

func validateCreate(in CreateInput) error {
	if !in.Type.Valid() {
		return apperr.Validation("tipo de teste inválido: %s", in.Type)
	}
	if in.ScheduledDate.IsZero() || in.DueDate.IsZero() {
		return apperr.Validation("datas agendada e de vencimento são obrigatórias")
	}
	if in.ScheduledDate.After(in.DueDate) {
		return apperr.Validation("data agendada não pode ser posterior ao vencimento")
	}
	return servicerecord.ValidatePeriodicity(in.PeriodicityMonths)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*View, error) {
	tenantID, err := s.gate(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if _, err := s.equipment.Lookup(ctx, tenantID, in.EquipmentID); err != nil {
		return nil, err
	}
	t := &MedicalPhysicsTest{
		TenantID:          tenantID,
		EquipmentID:       in.EquipmentID,
		Type:              in.Type,
		Status:            servicerecord.Agendada,
		ScheduledDate:     in.ScheduledDate,
		DueDate:           in.DueDate,
		PeriodicityMonths: in.PeriodicityMonths,
		ProviderID:        in.ProviderID,
		Provider:          in.Provider,
		Notes:             in.Notes,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	v := t.ViewAt(s.clock.Now())
	return &v, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	tenantID, err := s.gate(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	v := t.ViewAt(s.clock.Now())
	return &v, nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]View, int, error) {
	tenantID, err := s.gate(ctx)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	items, total, err := s.repo.List(ctx, tenantID, f, now, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]View, 0, len(items))
	for _, t := range items {
		views = append(views, t.ViewAt(now))
	}
	return views, total, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := s.gate(ctx)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, id)
}

// Execute marks the test REALIZADA and schedules its successor when it
// recurs.
func (s *Service) Execute(ctx context.Context, id uuid.UUID, in ExecuteInput) (*ExecuteResult, error) {
	tenantID, err := s.gate(ctx)
	if err != nil {
		return nil, err
	}
	if in.ExecutionDate.IsZero() {
		in.ExecutionDate = s.clock.Now()
	}

	var res *ExecuteResult
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := servicerecord.CanExecute(t.Status); err != nil {
			return err
		}
		ok, err := s.repo.MarkExecuted(ctx, tenantID, id, in)
		if err != nil {
			return apperr.Internal("registrar execução", err)
		}
		if !ok {
			return apperr.Conflict("teste já foi executado por outra requisição")
		}
		t.Status = servicerecord.Realizada
		t.ExecutionDate = &in.ExecutionDate
		if in.Notes != nil {
			t.Notes = in.Notes
		}
		if in.ReportURL != nil {
			t.ReportURL = in.ReportURL
		}

		now := s.clock.Now()
		res = &ExecuteResult{Executed: t.ViewAt(now)}
		scheduled, due, recurring := servicerecord.NextOccurrence(in.ExecutionDate, t.PeriodicityMonths)
		if !recurring {
			return nil
		}
		next := successorOf(t, scheduled, due)
		if err := s.repo.Create(ctx, next); err != nil {
			return err
		}
		v := next.ViewAt(now)
		res.Successor = &v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("physics_test_id", id.String()).
		Bool("regenerated", res.Successor != nil).
		Msg("physics test executed")
	return res, nil
}

func successorOf(t *MedicalPhysicsTest, scheduled, due time.Time) *MedicalPhysicsTest {
	return &MedicalPhysicsTest{
		TenantID:          t.TenantID,
		EquipmentID:       t.EquipmentID,
		Type:              t.Type,
		Status:            servicerecord.Agendada,
		ScheduledDate:     scheduled,
		DueDate:           due,
		PeriodicityMonths: t.PeriodicityMonths,
		ProviderID:        t.ProviderID,
		Provider:          t.Provider,
		PreviousID:        &t.ID,
	}
}
