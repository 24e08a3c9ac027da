package physics

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/domain/corrective"
	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
	"github.com/clinicaleng/cmms/internal/platform/events"
)

// Subscribe registers the invalidation rule as a required handler of
// corrective resolutions.
func (s *Service) Subscribe(bus *events.Bus) {
	bus.Subscribe(corrective.EventResolved, "physics.invalidate", s.handleResolved)
}

func (s *Service) handleResolved(ctx context.Context, e events.Event) error {
	r, ok := e.(corrective.Resolved)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	_, err := s.Invalidate(ctx, r.TenantID, r.EquipmentID)
	return err
}

// Invalidate voids the physics tests of repaired equipment. Executed tests go
// back to AGENDADA and every test type recorded for the equipment is left with
// a pending test. It runs in the caller's transaction and ignores the plan,
// since equipment repaired after a downgrade still needs retesting.
func (s *Service) Invalidate(ctx context.Context, tenantID string, equipmentID uuid.UUID) (InvalidationResult, error) {
	var res InvalidationResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.ResetExecuted(ctx, tenantID, equipmentID, InvalidatedNote)
		if err != nil {
			return fmt.Errorf("reset executed tests: %w", err)
		}
		res.Reset = n

		types, err := s.repo.Types(ctx, tenantID, equipmentID)
		if err != nil {
			return fmt.Errorf("list test types: %w", err)
		}
		res.Created, err = s.ensurePending(ctx, tenantID, equipmentID, types)
		return err
	})
	if err != nil {
		return InvalidationResult{}, err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("equipment_id", equipmentID.String()).
		Int("reset", res.Reset).
		Int("created", res.Created).
		Msg("physics tests invalidated")
	return res, nil
}

// ensurePending creates a system-generated test, due RetestWindow from now,
// for every type in types that has no AGENDADA test.
func (s *Service) ensurePending(ctx context.Context, tenantID string, equipmentID uuid.UUID, types []TestType) (int, error) {
	now := s.clock.Now()
	created := 0
	for _, tt := range types {
		pending, err := s.repo.HasPending(ctx, tenantID, equipmentID, tt)
		if err != nil {
			return created, err
		}
		if pending {
			continue
		}
		latest, err := s.repo.Latest(ctx, tenantID, equipmentID, tt)
		if err != nil {
			return created, err
		}
		note := GeneratedNote
		t := &MedicalPhysicsTest{
			TenantID:          tenantID,
			EquipmentID:       equipmentID,
			Type:              tt,
			Status:            servicerecord.Agendada,
			ScheduledDate:     now,
			DueDate:           now.Add(RetestWindow),
			PeriodicityMonths: latest.PeriodicityMonths,
			ProviderID:        latest.ProviderID,
			Provider:          latest.Provider,
			Notes:             &note,
			SystemGenerated:   true,
		}
		if err := s.repo.Create(ctx, t); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
