package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/plan"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
)

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,63}$`)

// ErrNoTenant is returned when an operation runs without a resolved tenant.
var ErrNoTenant = apperr.Forbidden("tenant não identificado")

// Tenant is a row of the tenant registry.
type Tenant struct {
	ID        string
	Name      string
	Plan      plan.Tier
	CreatedAt time.Time
}

// tenantSource yields a candidate tenant id from the request, or "".
type tenantSource func(c echo.Context) string

// tenantSources are consulted in order; the first non-empty id wins.
var tenantSources = []tenantSource{
	func(c echo.Context) string {
		s, _ := c.Get("jwt_tenant_id").(string)
		return s
	},
	func(c echo.Context) string { return c.Request().Header.Get("X-Tenant-ID") },
	func(c echo.Context) string { return c.QueryParam("tenant_id") },
}

func resolveTenantID(c echo.Context, fallback string) string {
	for _, src := range tenantSources {
		if id := src(c); id != "" {
			return id
		}
	}
	return fallback
}

// TenantMiddleware resolves the tenant for the request, checks that it is
// registered and pins a pooled connection to the request context. When no
// plan tier was bound upstream (public routes) the tenant's own plan is used.
// Isolation itself is enforced by the repositories filtering on tenant_id.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := resolveTenantID(c, defaultTenant)
			if !tenantIDPattern.MatchString(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			tenant, err := LookupTenant(ctx, conn, tenantID)
			if err != nil {
				return err
			}

			ctx = context.WithValue(ctx, TenantIDKey, tenant.ID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			if _, ok := plan.FromContext(ctx); !ok {
				ctx = plan.WithTier(ctx, tenant.Plan)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenant.ID)

			return next(c)
		}
	}
}

// LookupTenant loads a registered tenant. Unknown ids yield ErrNoTenant.
func LookupTenant(ctx context.Context, q Querier, tenantID string) (*Tenant, error) {
	rows, err := q.Query(ctx, `SELECT id, name, plan, created_at FROM tenant WHERE id = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("lookup tenant %s: %w", tenantID, err)
	}
	t, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByPos[Tenant])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoTenant
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant %s: %w", tenantID, err)
	}
	return t, nil
}

// ConnFromContext returns the connection pinned by TenantMiddleware, if any.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// WithTenant returns a copy of ctx bound to tenantID.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// RequireTenant returns the tenant bound to ctx or ErrNoTenant.
func RequireTenant(ctx context.Context) (string, error) {
	if tid := TenantFromContext(ctx); tid != "" {
		return tid, nil
	}
	return "", ErrNoTenant
}

func validTenant(tenantID string, tier plan.Tier) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %q", tenantID)
	}
	if !tier.Valid() {
		return fmt.Errorf("invalid plan %q", tier)
	}
	return nil
}

// CreateTenant registers a tenant or updates its name and plan. Tenants share
// one schema; the id is the value stored in every tenant_id column.
func CreateTenant(ctx context.Context, q Querier, tenantID, name string, tier plan.Tier) error {
	if err := validTenant(tenantID, tier); err != nil {
		return err
	}
	if name == "" {
		name = tenantID
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO tenant (id, name, plan) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, plan = EXCLUDED.plan`,
		tenantID, name, string(tier)); err != nil {
		return fmt.Errorf("create tenant %s: %w", tenantID, err)
	}
	return nil
}

// EnsureTenant registers tenantID unless it already exists, leaving an
// existing row untouched. Used to seed the development tenant.
func EnsureTenant(ctx context.Context, q Querier, tenantID string, tier plan.Tier) error {
	if err := validTenant(tenantID, tier); err != nil {
		return err
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO tenant (id, name, plan) VALUES ($1, $1, $2) ON CONFLICT (id) DO NOTHING`,
		tenantID, string(tier)); err != nil {
		return fmt.Errorf("ensure tenant %s: %w", tenantID, err)
	}
	return nil
}
