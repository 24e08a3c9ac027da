package serviceorder

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

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &orderRepoPG{pool: pool}
}

func (r *orderRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const orderCols = `id, tenant_id, number, preventive_maintenance_id, corrective_maintenance_id,
	equipment_id, status, started_at, completed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*ServiceOrder, error) {
	var o ServiceOrder
	err := row.Scan(&o.ID, &o.TenantID, &o.Number, &o.PreventiveMaintenanceID,
		&o.CorrectiveMaintenanceID, &o.EquipmentID, &o.Status,
		&o.StartedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ordem de serviço")
	}
	return &o, err
}

// Create numbers the order from the tenant's own counter. The counter row stays
// locked until the surrounding transaction ends, so numbers are gap free per
// tenant unless that transaction rolls back.
func (r *orderRepoPG) Create(ctx context.Context, o *ServiceOrder) error {
	o.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		WITH next AS (
			INSERT INTO tenant_counter (tenant_id, name, value) VALUES ($2, 'service_order', 1)
			ON CONFLICT (tenant_id, name) DO UPDATE SET value = tenant_counter.value + 1
			RETURNING value
		)
		INSERT INTO service_order (id, tenant_id, number, preventive_maintenance_id,
			corrective_maintenance_id, equipment_id, status)
		VALUES ($1, $2, (SELECT value FROM next), $3, $4, $5, $6)
		RETURNING number, created_at, updated_at`,
		o.ID, o.TenantID, o.PreventiveMaintenanceID, o.CorrectiveMaintenanceID,
		o.EquipmentID, o.Status,
	).Scan(&o.Number, &o.CreatedAt, &o.UpdatedAt)
}

func (r *orderRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*ServiceOrder, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderCols+` FROM service_order WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *orderRepoPG) Transition(ctx context.Context, tenantID string, id uuid.UUID, from, to Status, at time.Time) (bool, error) {
	var stamp string
	switch to {
	case StatusEmExecucao:
		stamp = "started_at"
	case StatusConcluida:
		stamp = "completed_at"
	default:
		return false, fmt.Errorf("no timestamp column for status %s", to)
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_order SET status = $4, `+stamp+` = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $3`,
		tenantID, id, from, to, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepoPG) List(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]*ServiceOrder, int, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	idx := 2
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.EquipmentID != nil {
		where = append(where, fmt.Sprintf("equipment_id = $%d", idx))
		args = append(args, *f.EquipmentID)
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM service_order WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM service_order WHERE %s ORDER BY number DESC LIMIT $%d OFFSET $%d`,
		orderCols, clause, idx, idx+1)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}
