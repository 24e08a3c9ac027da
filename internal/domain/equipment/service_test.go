package equipment

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

// -- Mock Repository --

type mockRepo struct {
	store map[uuid.UUID]*Equipment
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Equipment)}
}

func (m *mockRepo) Create(_ context.Context, e *Equipment) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*Equipment, error) {
	e, ok := m.store[id]
	if !ok || e.TenantID != tenantID {
		return nil, apperr.NotFound("equipamento")
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, e *Equipment) error {
	cur, ok := m.store[e.ID]
	if !ok || cur.TenantID != e.TenantID {
		return apperr.NotFound("equipamento")
	}
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, tenantID string, id uuid.UUID, status Status) error {
	e, ok := m.store[id]
	if !ok || e.TenantID != tenantID {
		return apperr.NotFound("equipamento")
	}
	e.Status = status
	return nil
}

func (m *mockRepo) Delete(_ context.Context, tenantID string, id uuid.UUID) error {
	e, ok := m.store[id]
	if !ok || e.TenantID != tenantID {
		return apperr.NotFound("equipamento")
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, tenantID string, f Filter, limit, offset int) ([]*Equipment, int, error) {
	var r []*Equipment
	for _, e := range m.store {
		if e.TenantID != tenantID {
			continue
		}
		if f.Criticality != "" && e.Criticality != f.Criticality {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		r = append(r, e)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Name < r[j].Name })
	return r, len(r), nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func tenantCtx(tenantID string) context.Context {
	return db.WithTenant(context.Background(), tenantID)
}

func strPtr(s string) *string { return &s }

func TestCreateEquipment_Defaults(t *testing.T) {
	svc, _ := newTestService()
	e := &Equipment{Name: "Monitor multiparamétrico", EquipmentType: "MONITOR", Criticality: CriticalityB}

	require.NoError(t, svc.CreateEquipment(tenantCtx("t1"), e))
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, StatusAtivo, e.Status)
	assert.Equal(t, "t1", e.TenantID)
}

func TestCreateEquipment_Validation(t *testing.T) {
	tests := []struct {
		name string
		e    Equipment
	}{
		{"missing name", Equipment{EquipmentType: "X", Criticality: CriticalityC}},
		{"missing type", Equipment{Name: "X", Criticality: CriticalityC}},
		{"bad criticality", Equipment{Name: "X", EquipmentType: "X", Criticality: "D"}},
		{"bad status", Equipment{Name: "X", EquipmentType: "X", Criticality: CriticalityC, Status: "QUEBRADO"}},
		{"criticality A without plan", Equipment{Name: "Ventilador", EquipmentType: "VENT", Criticality: CriticalityA}},
		{"criticality A with blank plan", Equipment{Name: "Ventilador", EquipmentType: "VENT", Criticality: CriticalityA, ContingencyPlan: strPtr("  ")}},
	}

	svc, _ := newTestService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.e
			err := svc.CreateEquipment(tenantCtx("t1"), &e)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestCreateEquipment_CriticalityAWithPlan(t *testing.T) {
	svc, _ := newTestService()
	e := &Equipment{Name: "Ventilador", EquipmentType: "VENT", Criticality: CriticalityA,
		ContingencyPlan: strPtr("Usar ventilador reserva do CTI")}
	require.NoError(t, svc.CreateEquipment(tenantCtx("t1"), e))
}

func TestCreateEquipment_RequiresTenant(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CreateEquipment(context.Background(), &Equipment{Name: "X", EquipmentType: "X", Criticality: CriticalityC})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestGetEquipment_OtherTenantIsNotFound(t *testing.T) {
	svc, _ := newTestService()
	e := &Equipment{Name: "Bomba de infusão", EquipmentType: "BOMBA", Criticality: CriticalityB}
	require.NoError(t, svc.CreateEquipment(tenantCtx("t1"), e))

	_, err := svc.GetEquipment(tenantCtx("t2"), e.ID)
	assert.True(t, apperr.IsNotFound(err))

	got, err := svc.GetEquipment(tenantCtx("t1"), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bomba de infusão", got.Name)
}

func TestUpdateEquipment_KeepsStatusWhenOmitted(t *testing.T) {
	svc, repo := newTestService()
	e := &Equipment{Name: "RX", EquipmentType: "RAIO_X", Criticality: CriticalityB}
	require.NoError(t, svc.CreateEquipment(tenantCtx("t1"), e))
	repo.store[e.ID].Status = StatusEmManutencao

	upd := &Equipment{ID: e.ID, Name: "RX sala 2", EquipmentType: "RAIO_X", Criticality: CriticalityB}
	require.NoError(t, svc.UpdateEquipment(tenantCtx("t1"), upd))
	assert.Equal(t, StatusEmManutencao, repo.store[e.ID].Status)
	assert.Equal(t, "RX sala 2", repo.store[e.ID].Name)
}

func TestUpdateEquipment_RaisingToAWithoutPlan(t *testing.T) {
	svc, _ := newTestService()
	e := &Equipment{Name: "RX", EquipmentType: "RAIO_X", Criticality: CriticalityB}
	require.NoError(t, svc.CreateEquipment(tenantCtx("t1"), e))

	upd := &Equipment{ID: e.ID, Name: "RX", EquipmentType: "RAIO_X", Criticality: CriticalityA}
	assert.True(t, apperr.IsValidation(svc.UpdateEquipment(tenantCtx("t1"), upd)))
}

func TestSetStatus(t *testing.T) {
	svc, repo := newTestService()
	e := &Equipment{Name: "RX", EquipmentType: "RAIO_X", Criticality: CriticalityC}
	require.NoError(t, svc.CreateEquipment(tenantCtx("t1"), e))

	require.NoError(t, svc.SetStatus(context.Background(), "t1", e.ID, StatusEmManutencao))
	assert.Equal(t, StatusEmManutencao, repo.store[e.ID].Status)

	assert.True(t, apperr.IsNotFound(svc.SetStatus(context.Background(), "t2", e.ID, StatusAtivo)))
	assert.True(t, apperr.IsValidation(svc.SetStatus(context.Background(), "t1", e.ID, "X")))
}

func TestDeleteEquipment(t *testing.T) {
	svc, repo := newTestService()
	e := &Equipment{Name: "RX", EquipmentType: "RAIO_X", Criticality: CriticalityC}
	require.NoError(t, svc.CreateEquipment(tenantCtx("t1"), e))

	assert.True(t, apperr.IsNotFound(svc.DeleteEquipment(tenantCtx("t2"), e.ID)))
	require.NoError(t, svc.DeleteEquipment(tenantCtx("t1"), e.ID))
	assert.Empty(t, repo.store)
}
