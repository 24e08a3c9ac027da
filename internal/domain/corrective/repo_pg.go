package corrective

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

type correctiveRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &correctiveRepoPG{pool: pool}
}

func (r *correctiveRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const correctiveCols = `id, tenant_id, equipment_id, description, urgency, status,
	opened_at, sla_deadline, opened_by_id, reporter_name, reporter_contact,
	assigned_to_id, accepted_at, diagnosis, solution, parts_used,
	time_spent_minutes, cost, closed_at, finalized_at, created_at, updated_at`

func scanCorrective(row pgx.Row) (*CorrectiveMaintenance, error) {
	var cm CorrectiveMaintenance
	err := row.Scan(&cm.ID, &cm.TenantID, &cm.EquipmentID, &cm.Description,
		&cm.Urgency, &cm.Status, &cm.OpenedAt, &cm.SLADeadline, &cm.OpenedByID,
		&cm.ReporterName, &cm.ReporterContact, &cm.AssignedToID, &cm.AcceptedAt,
		&cm.Diagnosis, &cm.Solution, &cm.PartsUsed, &cm.TimeSpentMinutes,
		&cm.Cost, &cm.ClosedAt, &cm.FinalizedAt, &cm.CreatedAt, &cm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("manutenção corretiva")
	}
	return &cm, err
}

func (r *correctiveRepoPG) Create(ctx context.Context, cm *CorrectiveMaintenance) error {
	cm.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO corrective_maintenance (id, tenant_id, equipment_id, description,
			urgency, status, opened_at, sla_deadline, opened_by_id, reporter_name,
			reporter_contact)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		cm.ID, cm.TenantID, cm.EquipmentID, cm.Description, cm.Urgency, cm.Status,
		cm.OpenedAt, cm.SLADeadline, cm.OpenedByID, cm.ReporterName, cm.ReporterContact,
	).Scan(&cm.CreatedAt, &cm.UpdatedAt)
}

func (r *correctiveRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*CorrectiveMaintenance, error) {
	return scanCorrective(r.conn(ctx).QueryRow(ctx,
		`SELECT `+correctiveCols+` FROM corrective_maintenance WHERE tenant_id = $1 AND id = $2`,
		tenantID, id))
}

func (r *correctiveRepoPG) List(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]*CorrectiveMaintenance, int, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	idx := 2

	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.Urgency != "" {
		where = append(where, fmt.Sprintf("urgency = $%d", idx))
		args = append(args, f.Urgency)
		idx++
	}
	if f.EquipmentID != nil {
		where = append(where, fmt.Sprintf("equipment_id = $%d", idx))
		args = append(args, *f.EquipmentID)
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM corrective_maintenance WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM corrective_maintenance WHERE %s
		ORDER BY opened_at DESC LIMIT $%d OFFSET $%d`, correctiveCols, clause, idx, idx+1)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*CorrectiveMaintenance
	for rows.Next() {
		cm, err := scanCorrective(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cm)
	}
	return items, total, rows.Err()
}

func (r *correctiveRepoPG) Accept(ctx context.Context, tenantID string, id, assignee uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE corrective_maintenance
		SET status = $3, assigned_to_id = $4, accepted_at = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $6`,
		tenantID, id, StatusEmAtendimento, assignee, at, StatusAberto)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *correctiveRepoPG) Resolve(ctx context.Context, tenantID string, id uuid.UUID, in ResolveInput, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE corrective_maintenance
		SET status = $3, diagnosis = $4, solution = $5, parts_used = $6,
			time_spent_minutes = $7, cost = $8, closed_at = $9, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $10`,
		tenantID, id, StatusResolvido, in.Diagnosis, in.Solution, in.PartsUsed,
		in.TimeSpentMinutes, in.Cost, at, StatusEmAtendimento)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *correctiveRepoPG) Close(ctx context.Context, tenantID string, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE corrective_maintenance
		SET status = $3, finalized_at = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $5`,
		tenantID, id, StatusFechado, at, StatusResolvido)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
