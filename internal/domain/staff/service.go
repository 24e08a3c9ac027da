package staff

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateMember(ctx context.Context, m *Member) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(m.Name) == "" {
		return apperr.Validation("nome é obrigatório")
	}
	if !validRoles[m.Role] {
		return apperr.Validation("perfil inválido: %s", m.Role)
	}
	m.TenantID = tenantID
	m.Active = true
	return s.repo.Create(ctx, m)
}

func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	return s.repo.SetActive(ctx, tenantID, id, active)
}

func (s *Service) ListMembers(ctx context.Context, role string, limit, offset int) ([]*Member, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, tenantID, role, limit, offset)
}

// RequireAssignee checks that id names an active MASTER or TECNICO of the
// tenant. Unknown ids are reported as a validation failure of the request.
func (s *Service) RequireAssignee(ctx context.Context, tenantID string, id uuid.UUID) error {
	m, err := s.repo.GetByID(ctx, tenantID, id)
	if apperr.IsNotFound(err) {
		return apperr.Validation("responsável não encontrado")
	}
	if err != nil {
		return err
	}
	if !m.CanAttend() {
		return apperr.Validation("responsável deve ser um técnico ou gestor ativo")
	}
	return nil
}
