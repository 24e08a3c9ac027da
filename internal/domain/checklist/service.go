package checklist

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/clock"
	"github.com/clinicaleng/cmms/internal/platform/db"
	"github.com/clinicaleng/cmms/internal/platform/plan"
)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	clock  clock.Clock
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, clock: clk, logger: logger}
}

func validateTemplate(t *Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return apperr.Validation("nome do checklist é obrigatório")
	}
	if strings.TrimSpace(t.EquipmentType) == "" {
		return apperr.Validation("tipo de equipamento é obrigatório")
	}
	if len(t.Items) == 0 {
		return apperr.Validation("checklist deve ter ao menos um item")
	}
	for i := range t.Items {
		if strings.TrimSpace(t.Items[i].Description) == "" {
			return apperr.Validation("item %d sem descrição", i+1)
		}
		t.Items[i].Position = i + 1
	}
	return nil
}

func (s *Service) CreateTemplate(ctx context.Context, t *Template) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	if err := plan.RequireFeature(ctx, plan.FeatureChecklists); err != nil {
		return err
	}
	t.TenantID = tenantID
	return s.createTemplate(ctx, t)
}

func (s *Service) createTemplate(ctx context.Context, t *Template) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.CreateTemplate(ctx, t)
	})
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetTemplate(ctx, tenantID, id)
}

func (s *Service) ListTemplates(ctx context.Context, equipmentType string, limit, offset int) ([]*Template, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListTemplates(ctx, tenantID, equipmentType, limit, offset)
}

// RecordResults validates inputs against the template for equipmentType and
// stores them for the preventive record. It joins the caller's transaction.
func (s *Service) RecordResults(ctx context.Context, tenantID, equipmentType string, preventiveID uuid.UUID, inputs []ResultInput) error {
	if len(inputs) == 0 {
		return nil
	}
	if err := plan.RequireFeature(ctx, plan.FeatureChecklists); err != nil {
		return err
	}

	tpl, err := s.repo.TemplateForEquipmentType(ctx, tenantID, equipmentType)
	if apperr.IsNotFound(err) {
		return apperr.Validation("não há checklist cadastrado para o tipo %s", equipmentType)
	}
	if err != nil {
		return err
	}

	known := make(map[uuid.UUID]bool, len(tpl.Items))
	for _, it := range tpl.Items {
		known[it.ID] = true
	}

	now := s.clock.Now()
	seen := make(map[uuid.UUID]bool, len(inputs))
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		if !known[in.ItemID] {
			return apperr.Validation("item %s não pertence ao checklist %s", in.ItemID, tpl.Name)
		}
		if seen[in.ItemID] {
			return apperr.Validation("item %s informado mais de uma vez", in.ItemID)
		}
		seen[in.ItemID] = true
		if !in.Outcome.Valid() {
			return apperr.Validation("resultado inválido: %s", in.Outcome)
		}
		if in.Outcome == NaoConforme && (in.Observation == nil || strings.TrimSpace(*in.Observation) == "") {
			return apperr.Validation("item não conforme exige observação")
		}
		results = append(results, Result{
			TenantID:                tenantID,
			PreventiveMaintenanceID: preventiveID,
			ItemID:                  in.ItemID,
			Outcome:                 in.Outcome,
			Observation:             in.Observation,
			RecordedAt:              now,
		})
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.SaveResults(ctx, results)
	})
}

func (s *Service) ResultsFor(ctx context.Context, preventiveID uuid.UUID) ([]Result, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ResultsFor(ctx, tenantID, preventiveID)
}

// importFile is the layout of a checklist seed file:
//
//	templates:
//	  - name: Monitor multiparamétrico
//	    equipment_type: MONITOR
//	    items:
//	      - Inspeção visual do gabinete
//	      - Teste de alarmes
type importFile struct {
	Templates []struct {
		Name          string   `yaml:"name"`
		EquipmentType string   `yaml:"equipment_type"`
		Items         []string `yaml:"items"`
	} `yaml:"templates"`
}

// Import creates every template in the YAML document read from r for
// tenantID, all or nothing. It returns how many templates were created.
func (s *Service) Import(ctx context.Context, tenantID string, r io.Reader) (int, error) {
	var doc importFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, apperr.Validation("arquivo de checklist inválido: %v", err)
	}
	if len(doc.Templates) == 0 {
		return 0, apperr.Validation("arquivo não contém checklists")
	}

	templates := make([]*Template, 0, len(doc.Templates))
	for i, in := range doc.Templates {
		t := &Template{TenantID: tenantID, Name: in.Name, EquipmentType: in.EquipmentType}
		for _, d := range in.Items {
			t.Items = append(t.Items, Item{Description: d})
		}
		if err := validateTemplate(t); err != nil {
			return 0, fmt.Errorf("template %d: %w", i+1, err)
		}
		templates = append(templates, t)
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, t := range templates {
			if err := s.repo.CreateTemplate(ctx, t); err != nil {
				return fmt.Errorf("create template %q: %w", t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("tenant_id", tenantID).Int("templates", len(templates)).Msg("checklists imported")
	return len(templates), nil
}
