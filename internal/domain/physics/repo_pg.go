package physics

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

type physicsRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &physicsRepoPG{pool: pool}
}

func (r *physicsRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const testCols = `id, tenant_id, equipment_id, type, status, scheduled_date, due_date,
	execution_date, periodicity_months, provider_id, provider, notes, report_url,
	system_generated, previous_id, created_at, updated_at`

func scanTest(row pgx.Row) (*MedicalPhysicsTest, error) {
	var t MedicalPhysicsTest
	err := row.Scan(&t.ID, &t.TenantID, &t.EquipmentID, &t.Type, &t.Status,
		&t.ScheduledDate, &t.DueDate, &t.ExecutionDate, &t.PeriodicityMonths,
		&t.ProviderID, &t.Provider, &t.Notes, &t.ReportURL, &t.SystemGenerated,
		&t.PreviousID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("teste de física médica")
	}
	return &t, err
}

func (r *physicsRepoPG) Create(ctx context.Context, t *MedicalPhysicsTest) error {
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_physics_test (id, tenant_id, equipment_id, type, status,
			scheduled_date, due_date, periodicity_months, provider_id, provider, notes,
			system_generated, previous_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		t.ID, t.TenantID, t.EquipmentID, t.Type, t.Status, t.ScheduledDate, t.DueDate,
		t.PeriodicityMonths, t.ProviderID, t.Provider, t.Notes, t.SystemGenerated, t.PreviousID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *physicsRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*MedicalPhysicsTest, error) {
	return scanTest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+testCols+` FROM medical_physics_test WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *physicsRepoPG) MarkExecuted(ctx context.Context, tenantID string, id uuid.UUID, in ExecuteInput) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_physics_test
		SET status = $3, execution_date = $4, notes = COALESCE($5, notes),
			report_url = COALESCE($6, report_url), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $7`,
		tenantID, id, servicerecord.Realizada, in.ExecutionDate, in.Notes, in.ReportURL,
		servicerecord.Agendada)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *physicsRepoPG) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM medical_physics_test WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("teste de física médica")
	}
	return nil
}

func (r *physicsRepoPG) List(ctx context.Context, tenantID string, f Filter, now time.Time, limit, offset int) ([]*MedicalPhysicsTest, int, error) {
	where := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	idx := 2

	if f.EquipmentID != nil {
		where = append(where, fmt.Sprintf("equipment_id = $%d", idx))
		args = append(args, *f.EquipmentID)
		idx++
	}
	if f.Type != "" {
		where = append(where, fmt.Sprintf("type = $%d", idx))
		args = append(args, f.Type)
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
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_physics_test WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM medical_physics_test WHERE %s
		ORDER BY due_date, created_at LIMIT $%d OFFSET $%d`, testCols, clause, idx, idx+1)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MedicalPhysicsTest
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *physicsRepoPG) ResetExecuted(ctx context.Context, tenantID string, equipmentID uuid.UUID, note string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_physics_test
		SET status = $3, execution_date = NULL,
			notes = CASE WHEN notes IS NULL OR notes = '' THEN $4 ELSE $4 || ' ' || notes END,
			updated_at = NOW()
		WHERE tenant_id = $1 AND equipment_id = $2 AND status = $5`,
		tenantID, equipmentID, servicerecord.Agendada, note, servicerecord.Realizada)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *physicsRepoPG) Types(ctx context.Context, tenantID string, equipmentID uuid.UUID) ([]TestType, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT type FROM medical_physics_test
		WHERE tenant_id = $1 AND equipment_id = $2 ORDER BY type`, tenantID, equipmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[TestType])
}

func (r *physicsRepoPG) HasPending(ctx context.Context, tenantID string, equipmentID uuid.UUID, t TestType) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM medical_physics_test
			WHERE tenant_id = $1 AND equipment_id = $2 AND type = $3 AND status = $4)`,
		tenantID, equipmentID, t, servicerecord.Agendada).Scan(&exists)
	return exists, err
}

func (r *physicsRepoPG) Latest(ctx context.Context, tenantID string, equipmentID uuid.UUID, t TestType) (*MedicalPhysicsTest, error) {
	return scanTest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+testCols+` FROM medical_physics_test
		WHERE tenant_id = $1 AND equipment_id = $2 AND type = $3
		ORDER BY created_at DESC, scheduled_date DESC, id DESC LIMIT 1`, tenantID, equipmentID, t))
}
