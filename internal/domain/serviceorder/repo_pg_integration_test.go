//go:build integration

package serviceorder_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicaleng/cmms/internal/domain/equipment"
	"github.com/clinicaleng/cmms/internal/domain/maintenance"
	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
	"github.com/clinicaleng/cmms/internal/domain/serviceorder"
	"github.com/clinicaleng/cmms/internal/platform/db"
	"github.com/clinicaleng/cmms/migrations"
)

// Run with: CMMS_TEST_DATABASE_URL=postgres://... go test -tags integration ./...
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("CMMS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CMMS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.NewMigrator(pool, migrations.FS).Up(ctx, "public")
	require.NoError(t, err)
	return pool
}

func newTenant(t *testing.T, pool *pgxpool.Pool, prefix string) string {
	t.Helper()
	id := prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	require.NoError(t, db.CreateTenant(context.Background(), pool, id, "", "ENTERPRISE"))
	return id
}

// openOrder creates a preventive record and an order attached to it.
func openOrder(t *testing.T, pool *pgxpool.Pool, tenantID string) *serviceorder.ServiceOrder {
	t.Helper()
	ctx := context.Background()
	eq := &equipment.Equipment{
		TenantID:      tenantID,
		Name:          "Bomba de infusão",
		EquipmentType: "BOMBA_INFUSAO",
		Criticality:   equipment.CriticalityB,
		Status:        equipment.StatusAtivo,
	}
	require.NoError(t, equipment.NewRepoPG(pool).Create(ctx, eq))

	due := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	pm := &maintenance.PreventiveMaintenance{
		TenantID:      tenantID,
		EquipmentID:   eq.ID,
		ServiceType:   maintenance.ServicePreventiva,
		Status:        servicerecord.Agendada,
		ScheduledDate: due.AddDate(0, 0, -7),
		DueDate:       due,
	}
	require.NoError(t, maintenance.NewRepoPG(pool).Create(ctx, pm))

	o := &serviceorder.ServiceOrder{
		TenantID:                tenantID,
		PreventiveMaintenanceID: &pm.ID,
		EquipmentID:             eq.ID,
		Status:                  serviceorder.StatusAberta,
	}
	require.NoError(t, serviceorder.NewRepoPG(pool).Create(ctx, o))
	return o
}

func TestRepoPG_OrderNumbersArePerTenant(t *testing.T) {
	pool := setupPool(t)
	tenantA := newTenant(t, pool, "so_a")
	tenantB := newTenant(t, pool, "so_b")

	a1 := openOrder(t, pool, tenantA)
	b1 := openOrder(t, pool, tenantB)
	b2 := openOrder(t, pool, tenantB)
	a2 := openOrder(t, pool, tenantA)

	assert.Equal(t, int64(1), a1.Number)
	assert.Equal(t, int64(2), a2.Number, "other tenants' orders must not consume this tenant's numbers")
	assert.Equal(t, int64(1), b1.Number)
	assert.Equal(t, int64(2), b2.Number)
	assert.Equal(t, "OS-000002", a2.Code())
}
