package serviceorder

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/clock"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

type Service struct {
	repo   Repository
	clock  clock.Clock
	logger zerolog.Logger
}

func NewService(repo Repository, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{repo: repo, clock: clk, logger: logger}
}

// OpenForPreventive creates the ABERTA order of a preventive record. Callers
// run it inside the transaction that creates the record.
func (s *Service) OpenForPreventive(ctx context.Context, tenantID string, preventiveID, equipmentID uuid.UUID) (*ServiceOrder, error) {
	return s.open(ctx, &ServiceOrder{
		TenantID:                tenantID,
		PreventiveMaintenanceID: &preventiveID,
		EquipmentID:             equipmentID,
	})
}

// OpenForCorrective creates the ABERTA order of a corrective ticket.
func (s *Service) OpenForCorrective(ctx context.Context, tenantID string, correctiveID, equipmentID uuid.UUID) (*ServiceOrder, error) {
	return s.open(ctx, &ServiceOrder{
		TenantID:                tenantID,
		CorrectiveMaintenanceID: &correctiveID,
		EquipmentID:             equipmentID,
	})
}

func (s *Service) open(ctx context.Context, o *ServiceOrder) (*ServiceOrder, error) {
	if err := o.validateParent(); err != nil {
		return nil, err
	}
	o.Status = StatusAberta
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*ServiceOrder, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) ListOrders(ctx context.Context, f Filter, limit, offset int) ([]*ServiceOrder, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	if f.Status != "" {
		if _, ok := transitions[f.Status]; !ok {
			return nil, 0, apperr.Validation("status inválido: %s", f.Status)
		}
	}
	return s.repo.List(ctx, tenantID, f, limit, offset)
}

func (s *Service) Start(ctx context.Context, id uuid.UUID) (*ServiceOrder, error) {
	return s.advance(ctx, id, StatusEmExecucao)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*ServiceOrder, error) {
	return s.advance(ctx, id, StatusConcluida)
}

func (s *Service) advance(ctx context.Context, id uuid.UUID, to Status) (*ServiceOrder, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(o.Status, to); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, err := s.repo.Transition(ctx, tenantID, id, o.Status, to, now)
	if err != nil {
		return nil, apperr.Internal("atualizar ordem de serviço", err)
	}
	if !ok {
		return nil, apperr.Conflict("ordem de serviço %s foi alterada por outra requisição", o.Code())
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("service_order_id", id.String()).
		Str("from", string(o.Status)).
		Str("to", string(to)).
		Msg("service order transition")

	o.Status = to
	switch to {
	case StatusEmExecucao:
		o.StartedAt = &now
	case StatusConcluida:
		o.CompletedAt = &now
	}
	return o, nil
}
