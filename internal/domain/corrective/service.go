package corrective

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicaleng/cmms/internal/domain/equipment"
	"github.com/clinicaleng/cmms/internal/domain/serviceorder"
	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/auth"
	"github.com/clinicaleng/cmms/internal/platform/clock"
	"github.com/clinicaleng/cmms/internal/platform/db"
	"github.com/clinicaleng/cmms/internal/platform/events"
)

type EquipmentRegistry interface {
	Lookup(ctx context.Context, tenantID string, id uuid.UUID) (*equipment.Equipment, error)
	SetStatus(ctx context.Context, tenantID string, id uuid.UUID, status equipment.Status) error
}

type AssigneeChecker interface {
	RequireAssignee(ctx context.Context, tenantID string, id uuid.UUID) error
}

type OrderOpener interface {
	OpenForCorrective(ctx context.Context, tenantID string, correctiveID, equipmentID uuid.UUID) (*serviceorder.ServiceOrder, error)
}

type Service struct {
	repo      Repository
	equipment EquipmentRegistry
	staff     AssigneeChecker
	orders    OrderOpener
	events    events.Publisher
	tx        db.TxRunner
	clock     clock.Clock
	logger    zerolog.Logger
}

func NewService(repo Repository, eq EquipmentRegistry, staff AssigneeChecker, orders OrderOpener,
	pub events.Publisher, tx db.TxRunner, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		equipment: eq,
		staff:     staff,
		orders:    orders,
		events:    pub,
		tx:        tx,
		clock:     clk,
		logger:    logger,
	}
}

// Open creates a ticket on behalf of the authenticated user.
func (s *Service) Open(ctx context.Context, in OpenInput) (*View, error) {
	var openedBy *uuid.UUID
	if id, err := uuid.Parse(auth.UserIDFromContext(ctx)); err == nil {
		openedBy = &id
	}
	return s.open(ctx, in, openedBy, false)
}

// OpenPublic creates a ticket from the equipment's public QR page. The
// reporter identifies themselves by name.
func (s *Service) OpenPublic(ctx context.Context, in OpenInput) (*View, error) {
	if in.ReporterName == nil || strings.TrimSpace(*in.ReporterName) == "" {
		return nil, apperr.Validation("nome do solicitante é obrigatório")
	}
	return s.open(ctx, in, nil, true)
}

func (s *Service) open(ctx context.Context, in OpenInput, openedBy *uuid.UUID, public bool) (*View, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperr.Validation("descrição é obrigatória")
	}
	if in.Urgency == "" {
		in.Urgency = UrgencyMedia
	}
	if !in.Urgency.Valid() {
		return nil, apperr.Validation("urgência inválida: %s", in.Urgency)
	}

	var (
		cm *CorrectiveMaintenance
		eq *equipment.Equipment
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		eq, err = s.equipment.Lookup(ctx, tenantID, in.EquipmentID)
		if err != nil {
			return err
		}
		if eq.Status == equipment.StatusDescartado {
			return apperr.Validation("equipamento descartado não aceita chamados")
		}
		now := s.clock.Now()
		cm = &CorrectiveMaintenance{
			TenantID:        tenantID,
			EquipmentID:     eq.ID,
			Description:     in.Description,
			Urgency:         in.Urgency,
			Status:          StatusAberto,
			OpenedAt:        now,
			SLADeadline:     equipment.SLADeadline(eq.Criticality, now),
			OpenedByID:      openedBy,
			ReporterName:    in.ReporterName,
			ReporterContact: in.ReporterContact,
		}
		if err := s.repo.Create(ctx, cm); err != nil {
			return err
		}
		if err := s.equipment.SetStatus(ctx, tenantID, eq.ID, equipment.StatusEmManutencao); err != nil {
			return err
		}
		_, err := s.orders.OpenForCorrective(ctx, tenantID, cm.ID, eq.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	eq.Status = equipment.StatusEmManutencao

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("corrective_id", cm.ID.String()).
		Str("equipment_id", eq.ID.String()).
		Str("criticality", string(eq.Criticality)).
		Time("sla_deadline", cm.SLADeadline).
		Bool("public", public).
		Msg("corrective ticket opened")

	// Observers only; a failure here must not undo the committed ticket.
	_ = s.events.Publish(ctx, Opened{
		TenantID:      tenantID,
		TicketID:      cm.ID,
		EquipmentID:   eq.ID,
		EquipmentName: eq.Name,
		Criticality:   eq.Criticality,
		Urgency:       cm.Urgency,
		SLADeadline:   cm.SLADeadline,
		Public:        public,
	})

	v := newView(cm, eq, s.clock.Now())
	return &v, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	cm, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, tenantID, cm)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]View, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.List(ctx, tenantID, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	seen := make(map[uuid.UUID]*equipment.Equipment)
	views := make([]View, 0, len(items))
	for _, cm := range items {
		eq, ok := seen[cm.EquipmentID]
		if !ok {
			if eq, err = s.equipment.Lookup(ctx, tenantID, cm.EquipmentID); err != nil {
				return nil, 0, err
			}
			seen[cm.EquipmentID] = eq
		}
		views = append(views, newView(cm, eq, now))
	}
	return views, total, nil
}

func (s *Service) view(ctx context.Context, tenantID string, cm *CorrectiveMaintenance) (*View, error) {
	eq, err := s.equipment.Lookup(ctx, tenantID, cm.EquipmentID)
	if err != nil {
		return nil, err
	}
	v := newView(cm, eq, s.clock.Now())
	return &v, nil
}

// load fetches the ticket and checks that moving it to `to` is legal.
func (s *Service) load(ctx context.Context, tenantID string, id uuid.UUID, to Status) (*CorrectiveMaintenance, error) {
	cm, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(cm.Status, to); err != nil {
		return nil, err
	}
	return cm, nil
}

// Accept assigns the ticket. Of concurrent accepts only one matches the
// ABERTO row; the others fail validation.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, in AcceptInput) (*View, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if in.AssignedToID == uuid.Nil {
		return nil, apperr.Validation("responsável é obrigatório")
	}

	var cm *CorrectiveMaintenance
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		cm, err = s.load(ctx, tenantID, id, StatusEmAtendimento)
		if err != nil {
			return err
		}
		if err := s.staff.RequireAssignee(ctx, tenantID, in.AssignedToID); err != nil {
			return err
		}
		now := s.clock.Now()
		ok, err := s.repo.Accept(ctx, tenantID, id, in.AssignedToID, now)
		if err != nil {
			return apperr.Internal("aceitar chamado", err)
		}
		if !ok {
			return apperr.Validation("chamado não está mais aberto")
		}
		cm.Status = StatusEmAtendimento
		cm.AssignedToID = &in.AssignedToID
		cm.AcceptedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(tenantID, cm, StatusAberto)
	return s.view(ctx, tenantID, cm)
}

// Resolve records the repair, returns the equipment to service and publishes
// Resolved inside the same transaction.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, in ResolveInput) (*View, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Solution) == "" {
		return nil, apperr.Validation("solução é obrigatória")
	}
	if in.Cost != nil && *in.Cost < 0 {
		return nil, apperr.Validation("custo não pode ser negativo")
	}
	if in.TimeSpentMinutes != nil && *in.TimeSpentMinutes < 0 {
		return nil, apperr.Validation("tempo gasto não pode ser negativo")
	}

	var cm *CorrectiveMaintenance
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		cm, err = s.load(ctx, tenantID, id, StatusResolvido)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		ok, err := s.repo.Resolve(ctx, tenantID, id, in, now)
		if err != nil {
			return apperr.Internal("resolver chamado", err)
		}
		if !ok {
			return apperr.Validation("chamado não está em atendimento")
		}
		if err := s.equipment.SetStatus(ctx, tenantID, cm.EquipmentID, equipment.StatusAtivo); err != nil {
			return err
		}
		if err := s.events.Publish(ctx, Resolved{
			TenantID:    tenantID,
			TicketID:    cm.ID,
			EquipmentID: cm.EquipmentID,
			ResolvedAt:  now,
		}); err != nil {
			return err
		}
		cm.Status = StatusResolvido
		cm.Diagnosis = in.Diagnosis
		cm.Solution = &in.Solution
		cm.PartsUsed = in.PartsUsed
		cm.TimeSpentMinutes = in.TimeSpentMinutes
		cm.Cost = in.Cost
		cm.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(tenantID, cm, StatusEmAtendimento)
	return s.view(ctx, tenantID, cm)
}

func (s *Service) Close(ctx context.Context, id uuid.UUID) (*View, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	cm, err := s.load(ctx, tenantID, id, StatusFechado)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	ok, err := s.repo.Close(ctx, tenantID, id, now)
	if err != nil {
		return nil, apperr.Internal("fechar chamado", err)
	}
	if !ok {
		return nil, apperr.Validation("chamado não está resolvido")
	}
	cm.Status = StatusFechado
	cm.FinalizedAt = &now
	s.logTransition(tenantID, cm, StatusResolvido)
	return s.view(ctx, tenantID, cm)
}

func (s *Service) logTransition(tenantID string, cm *CorrectiveMaintenance, from Status) {
	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("corrective_id", cm.ID.String()).
		Str("equipment_id", cm.EquipmentID.String()).
		Str("from", string(from)).
		Str("to", string(cm.Status)).
		Msg("corrective ticket transition")
}

