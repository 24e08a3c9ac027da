package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
	"github.com/clinicaleng/cmms/internal/platform/plan"
)

type BulkScheduleInput struct {
	EquipmentIDs      []uuid.UUID `json:"equipment_ids"`
	ServiceType       string      `json:"service_type"`
	ScheduledDate     time.Time   `json:"scheduled_date"`
	DueDate           time.Time   `json:"due_date"`
	PeriodicityMonths int         `json:"periodicity_months"`
	ProviderID        *uuid.UUID  `json:"provider_id,omitempty"`
	Provider          *string     `json:"provider,omitempty"`
}

type BulkExecuteInput struct {
	RecordIDs     []uuid.UUID `json:"record_ids"`
	ServiceType   string      `json:"service_type"`
	ExecutionDate time.Time   `json:"execution_date"`
	Notes         *string     `json:"notes,omitempty"`
}

type SkippedItem struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// BulkResult reports what a batch did. IDs lists the records created or
// executed, in input order.
type BulkResult struct {
	Processed int           `json:"processed"`
	IDs       []uuid.UUID   `json:"ids"`
	Skipped   []SkippedItem `json:"skipped"`
}

func (r *BulkResult) skip(id uuid.UUID, err error) {
	r.Skipped = append(r.Skipped, SkippedItem{ID: id, Reason: apperr.PublicMessage(err)})
}

func (s *Service) checkBatch(ctx context.Context, n int, serviceType string) (string, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", apperr.Validation("selecione ao menos um item")
	}
	if n > s.bulk.MaxItems {
		return "", apperr.Validation("lote excede o limite de %d itens", s.bulk.MaxItems)
	}
	if !ValidServiceType(serviceType) {
		return "", apperr.Validation("tipo de serviço inválido: %s", serviceType)
	}
	if err := plan.RequireServiceType(ctx, serviceType); err != nil {
		return "", err
	}
	return tenantID, nil
}

// runBatch runs fn for every id inside one transaction bounded by the bulk
// timeout. Business rejections skip the item; any other error rolls back the
// whole batch.
func (s *Service) runBatch(ctx context.Context, op string, ids []uuid.UUID, fn func(ctx context.Context, id uuid.UUID) (uuid.UUID, error)) (*BulkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.bulk.Timeout)
	defer cancel()

	var res *BulkResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		res = &BulkResult{IDs: []uuid.UUID{}, Skipped: []SkippedItem{}}
		seen := make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				res.skip(id, apperr.Validation("item duplicado no lote"))
				continue
			}
			seen[id] = true

			out, err := fn(ctx, id)
			if err != nil {
				if apperr.IsRejection(err) {
					s.logger.Debug().Err(err).Str("op", op).Str("id", id.String()).Msg("bulk item skipped")
					res.skip(id, err)
					continue
				}
				return fmt.Errorf("%s item %s: %w", op, id, err)
			}
			res.Processed++
			res.IDs = append(res.IDs, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("op", op).
		Int("requested", len(ids)).
		Int("processed", res.Processed).
		Int("skipped", len(res.Skipped)).
		Msg("bulk operation committed")
	return res, nil
}

// BulkSchedule creates one record per equipment with shared scheduling data.
func (s *Service) BulkSchedule(ctx context.Context, in BulkScheduleInput) (*BulkResult, error) {
	tenantID, err := s.checkBatch(ctx, len(in.EquipmentIDs), in.ServiceType)
	if err != nil {
		return nil, err
	}
	if err := validateSchedule(in.ServiceType, in.ScheduledDate, in.DueDate, in.PeriodicityMonths); err != nil {
		return nil, err
	}

	return s.runBatch(ctx, "bulk_schedule", in.EquipmentIDs, func(ctx context.Context, eqID uuid.UUID) (uuid.UUID, error) {
		pm, err := s.schedule(ctx, tenantID, CreateInput{
			EquipmentID:       eqID,
			ServiceType:       in.ServiceType,
			ScheduledDate:     in.ScheduledDate,
			DueDate:           in.DueDate,
			PeriodicityMonths: in.PeriodicityMonths,
			ProviderID:        in.ProviderID,
			Provider:          in.Provider,
		})
		if err != nil {
			return uuid.Nil, err
		}
		return pm.ID, nil
	})
}

// BulkExecute executes AGENDADA records of the batch service type with a
// shared execution date. Each execution regenerates its own successor.
func (s *Service) BulkExecute(ctx context.Context, in BulkExecuteInput) (*BulkResult, error) {
	tenantID, err := s.checkBatch(ctx, len(in.RecordIDs), in.ServiceType)
	if err != nil {
		return nil, err
	}
	exec := ExecuteInput{ExecutionDate: in.ExecutionDate, Notes: in.Notes}
	if err := validateExecution(&exec, s.clock.Now()); err != nil {
		return nil, err
	}

	return s.runBatch(ctx, "bulk_execute", in.RecordIDs, func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
		if _, err := s.executeOne(ctx, tenantID, id, exec, in.ServiceType); err != nil {
			return uuid.Nil, err
		}
		return id, nil
	})
}
