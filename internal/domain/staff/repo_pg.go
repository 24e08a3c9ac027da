package staff

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

type staffRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &staffRepoPG{pool: pool}
}

func (r *staffRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const staffCols = `id, tenant_id, name, email, role, active, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Email, &m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("colaborador")
	}
	return &m, err
}

func (r *staffRepoPG) Create(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff_member (id, tenant_id, name, email, role, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		m.ID, m.TenantID, m.Name, m.Email, m.Role, m.Active,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *staffRepoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Member, error) {
	return scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+staffCols+` FROM staff_member WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *staffRepoPG) SetActive(ctx context.Context, tenantID string, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE staff_member SET active = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("colaborador")
	}
	return nil
}

func (r *staffRepoPG) List(ctx context.Context, tenantID, role string, limit, offset int) ([]*Member, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM staff_member WHERE tenant_id = $1 AND ($2 = '' OR role = $2)`,
		tenantID, role).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+staffCols+` FROM staff_member
		 WHERE tenant_id = $1 AND ($2 = '' OR role = $2)
		 ORDER BY name LIMIT $3 OFFSET $4`,
		tenantID, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
