package checklist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

type checklistRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &checklistRepoPG{pool: pool}
}

func (r *checklistRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

// CreateTemplate inserts the template and its items. Callers wrap it in a
// transaction.
func (r *checklistRepoPG) CreateTemplate(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	if err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO checklist_template (id, tenant_id, name, equipment_type)
		VALUES ($1, $2, $3, $4) RETURNING created_at`,
		t.ID, t.TenantID, t.Name, t.EquipmentType).Scan(&t.CreatedAt); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i := range t.Items {
		it := &t.Items[i]
		it.ID = uuid.New()
		it.TemplateID = t.ID
		batch.Queue(`INSERT INTO checklist_item (id, tenant_id, template_id, position, description)
			VALUES ($1, $2, $3, $4, $5)`, it.ID, t.TenantID, t.ID, it.Position, it.Description)
	}
	return r.sendBatch(ctx, batch)
}

func (r *checklistRepoPG) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	type batcher interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	}
	var b batcher = r.pool
	if tx := db.TxFromContext(ctx); tx != nil {
		b = tx
	} else if c := db.ConnFromContext(ctx); c != nil {
		b = c
	}
	return b.SendBatch(ctx, batch).Close()
}

func (r *checklistRepoPG) loadItems(ctx context.Context, t *Template) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, template_id, position, description FROM checklist_item
		WHERE tenant_id = $1 AND template_id = $2 ORDER BY position`, t.TenantID, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	t.Items = nil
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.TemplateID, &it.Position, &it.Description); err != nil {
			return err
		}
		t.Items = append(t.Items, it)
	}
	return rows.Err()
}

const templateCols = `id, tenant_id, name, equipment_type, created_at`

func (r *checklistRepoPG) getOne(ctx context.Context, query string, args ...interface{}) (*Template, error) {
	var t Template
	err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&t.ID, &t.TenantID, &t.Name, &t.EquipmentType, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("checklist")
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *checklistRepoPG) GetTemplate(ctx context.Context, tenantID string, id uuid.UUID) (*Template, error) {
	return r.getOne(ctx, `SELECT `+templateCols+` FROM checklist_template WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (r *checklistRepoPG) TemplateForEquipmentType(ctx context.Context, tenantID, equipmentType string) (*Template, error) {
	return r.getOne(ctx, `SELECT `+templateCols+` FROM checklist_template
		WHERE tenant_id = $1 AND equipment_type = $2 ORDER BY created_at DESC LIMIT 1`, tenantID, equipmentType)
}

func (r *checklistRepoPG) ListTemplates(ctx context.Context, tenantID, equipmentType string, limit, offset int) ([]*Template, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM checklist_template WHERE tenant_id = $1 AND ($2 = '' OR equipment_type = $2)`,
		tenantID, equipmentType).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+templateCols+` FROM checklist_template
		WHERE tenant_id = $1 AND ($2 = '' OR equipment_type = $2)
		ORDER BY name LIMIT $3 OFFSET $4`, tenantID, equipmentType, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var items []*Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.EquipmentType, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, &t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *checklistRepoPG) SaveResults(ctx context.Context, results []Result) error {
	batch := &pgx.Batch{}
	for i := range results {
		res := &results[i]
		res.ID = uuid.New()
		batch.Queue(`
			INSERT INTO checklist_result (id, tenant_id, preventive_maintenance_id, item_id, outcome, observation, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (preventive_maintenance_id, item_id)
			DO UPDATE SET outcome = EXCLUDED.outcome, observation = EXCLUDED.observation, recorded_at = EXCLUDED.recorded_at`,
			res.ID, res.TenantID, res.PreventiveMaintenanceID, res.ItemID, res.Outcome, res.Observation, res.RecordedAt)
	}
	return r.sendBatch(ctx, batch)
}

func (r *checklistRepoPG) ResultsFor(ctx context.Context, tenantID string, preventiveID uuid.UUID) ([]Result, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT r.id, r.tenant_id, r.preventive_maintenance_id, r.item_id, i.description,
			r.outcome, r.observation, r.recorded_at
		FROM checklist_result r
		JOIN checklist_item i ON i.id = r.item_id
		WHERE r.tenant_id = $1 AND r.preventive_maintenance_id = $2
		ORDER BY i.position`, tenantID, preventiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.ID, &res.TenantID, &res.PreventiveMaintenanceID, &res.ItemID,
			&res.ItemDescription, &res.Outcome, &res.Observation, &res.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
