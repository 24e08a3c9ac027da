package equipment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func validate(e *Equipment) error {
	if strings.TrimSpace(e.Name) == "" {
		return apperr.Validation("nome é obrigatório")
	}
	if strings.TrimSpace(e.EquipmentType) == "" {
		return apperr.Validation("tipo de equipamento é obrigatório")
	}
	if !e.Criticality.Valid() {
		return apperr.Validation("criticidade inválida: %s", e.Criticality)
	}
	if !e.Status.Valid() {
		return apperr.Validation("status inválido: %s", e.Status)
	}
	if e.Criticality.RequiresContingencyPlan() && (e.ContingencyPlan == nil || strings.TrimSpace(*e.ContingencyPlan) == "") {
		return apperr.Validation("equipamentos de criticidade A exigem plano de contingência")
	}
	return nil
}

func (s *Service) CreateEquipment(ctx context.Context, e *Equipment) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = StatusAtivo
	}
	if err := validate(e); err != nil {
		return err
	}
	e.TenantID = tenantID
	return s.repo.Create(ctx, e)
}

func (s *Service) GetEquipment(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) UpdateEquipment(ctx context.Context, e *Equipment) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	current, err := s.repo.GetByID(ctx, tenantID, e.ID)
	if err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = current.Status
	}
	if err := validate(e); err != nil {
		return err
	}
	e.TenantID = tenantID
	e.CreatedAt = current.CreatedAt
	return s.repo.Update(ctx, e)
}

func (s *Service) DeleteEquipment(ctx context.Context, id uuid.UUID) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, id)
}

func (s *Service) ListEquipment(ctx context.Context, f Filter, limit, offset int) ([]*Equipment, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, tenantID, f, limit, offset)
}

// SetStatus records an availability change driven by the maintenance
// workflow. Concurrent tickets on the same equipment overwrite each other.
func (s *Service) SetStatus(ctx context.Context, tenantID string, id uuid.UUID, status Status) error {
	if !status.Valid() {
		return apperr.Validation("status inválido: %s", status)
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, id, status); err != nil {
		return err
	}
	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("equipment_id", id.String()).
		Str("status", string(status)).
		Msg("equipment status changed")
	return nil
}

// Lookup returns the equipment without resolving the tenant from ctx, for
// callers that already hold it.
func (s *Service) Lookup(ctx context.Context, tenantID string, id uuid.UUID) (*Equipment, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}
