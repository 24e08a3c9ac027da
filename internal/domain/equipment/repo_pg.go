package equipment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

type equipmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &equipmentRepoPG{pool: pool}
}

func (r *equipmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const equipmentCols = `id, tenant_id, name, equipment_type, manufacturer, model,
	serial_number, location, criticality, status, contingency_plan,
	created_at, updated_at`

func scanEquipment(row pgx.Row) (*Equipment, error) {
	var e Equipment
	err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.EquipmentType,
		&e.Manufacturer, &e.Model, &e.SerialNumber, &e.Location,
		&e.Criticality, &e.Status, &e.ContingencyPlan,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("equipamento")
	}
	return &e, err
}

func (r *equipmentRepoPG) Create(ctx context.Context, e *Equipment) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO equipment (id, tenant_id, name, equipment_type, manufacturer, model,
			serial_number, location, criticality, status, contingency_plan)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		e.ID, e.TenantID, e.Name, e.EquipmentType, e.Manufacturer, e.Model,
		e.SerialNumber, e.Location, e.Criticality, e.Status, e.ContingencyPlan,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *equipmentRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Equipment, error) {
	return scanEquipment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+equipmentCols+` FROM equipment WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *equipmentRepoPG) Update(ctx context.Context, e *Equipment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE equipment SET name=$3, equipment_type=$4, manufacturer=$5, model=$6,
			serial_number=$7, location=$8, criticality=$9, status=$10,
			contingency_plan=$11, updated_at=NOW()
		WHERE tenant_id = $1 AND id = $2`,
		e.TenantID, e.ID, e.Name, e.EquipmentType, e.Manufacturer, e.Model,
		e.SerialNumber, e.Location, e.Criticality, e.Status, e.ContingencyPlan)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("equipamento")
	}
	return nil
}

func (r *equipmentRepoPG) UpdateStatus(ctx context.Context, tenantID string, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE equipment SET status = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("equipamento")
	}
	return nil
}

func (r *equipmentRepoPG) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM equipment WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("equipamento")
	}
	return nil
}

func (r *equipmentRepoPG) List(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]*Equipment, int, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	idx := 2

	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.Criticality != "" {
		where = append(where, fmt.Sprintf("criticality = $%d", idx))
		args = append(args, f.Criticality)
		idx++
	}
	if f.EquipmentType != "" {
		where = append(where, fmt.Sprintf("equipment_type = $%d", idx))
		args = append(args, f.EquipmentType)
		idx++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR serial_number ILIKE $%d)", idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM equipment WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM equipment WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		equipmentCols, clause, idx, idx+1)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
