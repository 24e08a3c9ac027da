package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

type maintenanceRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &maintenanceRepoPG{pool: pool}
}

func (r *maintenanceRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const pmCols = `id, tenant_id, equipment_id, service_type, status, scheduled_date, due_date,
	execution_date, periodicity_months, provider_id, provider, cost, notes,
	certificate_url, previous_id, created_at, updated_at`

func scanPM(row pgx.Row) (*PreventiveMaintenance, error) {
	var pm PreventiveMaintenance
	err := row.Scan(&pm.ID, &pm.TenantID, &pm.EquipmentID, &pm.ServiceType, &pm.Status,
		&pm.ScheduledDate, &pm.DueDate, &pm.ExecutionDate, &pm.PeriodicityMonths,
		&pm.ProviderID, &pm.Provider, &pm.Cost, &pm.Notes, &pm.CertificateURL,
		&pm.PreviousID, &pm.CreatedAt, &pm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("manutenção preventiva")
	}
	return &pm, err
}

func (r *maintenanceRepoPG) Create(ctx context.Context, pm *PreventiveMaintenance) error {
	pm.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO preventive_maintenance (id, tenant_id, equipment_id, service_type, status,
			scheduled_date, due_date, periodicity_months, provider_id, provider, notes, previous_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		pm.ID, pm.TenantID, pm.EquipmentID, pm.ServiceType, pm.Status,
		pm.ScheduledDate, pm.DueDate, pm.PeriodicityMonths, pm.ProviderID, pm.Provider,
		pm.Notes, pm.PreviousID,
	).Scan(&pm.CreatedAt, &pm.UpdatedAt)
}

func (r *maintenanceRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*PreventiveMaintenance, error) {
	return scanPM(r.conn(ctx).QueryRow(ctx,
		`SELECT `+pmCols+` FROM preventive_maintenance WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *maintenanceRepoPG) MarkExecuted(ctx context.Context, tenantID string, id uuid.UUID, e Execution) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE preventive_maintenance
		SET status = $3, execution_date = $4, cost = COALESCE($5, cost),
			notes = COALESCE($6, notes), certificate_url = COALESCE($7, certificate_url),
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $8`,
		tenantID, id, servicerecord.Realizada, e.ExecutionDate, e.Cost, e.Notes, e.CertificateURL,
		servicerecord.Agendada)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *maintenanceRepoPG) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM preventive_maintenance WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("manutenção preventiva")
	}
	return nil
}

func (r *maintenanceRepoPG) List(ctx context.Context, tenantID string, f Filter, now time.Time, limit, offset int) ([]*PreventiveMaintenance, int, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	idx := 2

	if f.EquipmentID != nil {
		where = append(where, fmt.Sprintf("equipment_id = $%d", idx))
		args = append(args, *f.EquipmentID)
		idx++
	}
	if f.ServiceType != "" {
		where = append(where, fmt.Sprintf("service_type = $%d", idx))
		args = append(args, f.ServiceType)
		idx++
	}
	switch f.Status {
	case servicerecord.Vencida:
		where = append(where, fmt.Sprintf("status = $%d AND due_date < $%d", idx, idx+1))
		args = append(args, servicerecord.Agendada, now)
		idx += 2
	case servicerecord.Agendada:
		where = append(where, fmt.Sprintf("status = $%d AND due_date >= $%d", idx, idx+1))
		args = append(args, servicerecord.Agendada, now)
		idx += 2
	case servicerecord.Realizada:
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, servicerecord.Realizada)
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM preventive_maintenance WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM preventive_maintenance WHERE %s
		ORDER BY due_date, created_at LIMIT $%d OFFSET $%d`, pmCols, clause, idx, idx+1)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*PreventiveMaintenance
	for rows.Next() {
		pm, err := scanPM(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, pm)
	}
	return items, total, rows.Err()
}
