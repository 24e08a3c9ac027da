package physics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicaleng/cmms/internal/domain/corrective"
	"github.com/clinicaleng/cmms/internal/domain/equipment"
	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
	"github.com/clinicaleng/cmms/internal/domain/serviceorder"
	"github.com/clinicaleng/cmms/internal/platform/db"
	"github.com/clinicaleng/cmms/internal/platform/events"
	"github.com/clinicaleng/cmms/internal/platform/plan"
)

var errDB = errors.New("connection reset by peer")

func (f *fixture) executed(t *testing.T, eqID uuid.UUID, tt TestType) uuid.UUID {
	t.Helper()
	v := f.create(t, eqID, tt, 0)
	_, err := f.svc.Execute(ctxFor("t1", plan.Enterprise), v.ID, ExecuteInput{ExecutionDate: day(2024, 6, 1)})
	require.NoError(t, err)
	return v.ID
}

func TestInvalidate_ResetsExecutedTests(t *testing.T) {
	f := newFixture(t)
	eq := f.addEquipment("t1")
	other := f.addEquipment("t1")

	done := f.executed(t, eq, TypeControleQualidade)
	pending := f.create(t, eq, TypeRadiacaoFuga, 0).ID
	untouched := f.executed(t, other, TypeControleQualidade)

	res, err := f.svc.Invalidate(context.Background(), "t1", eq)
	require.NoError(t, err)
	assert.Equal(t, InvalidationResult{Reset: 1, Created: 0}, res)

	got := f.repo.store[done]
	assert.Equal(t, servicerecord.Agendada, got.Status)
	assert.Nil(t, got.ExecutionDate)
	assert.True(t, strings.HasPrefix(notes(got), InvalidatedNote))

	assert.Equal(t, servicerecord.Agendada, f.repo.store[pending].Status)
	assert.Empty(t, notes(f.repo.store[pending]))
	assert.Equal(t, servicerecord.Realizada, f.repo.store[untouched].Status)
	assert.Len(t, f.repo.forEquipment(eq), 2)
}

func TestInvalidate_KeepsExistingNotes(t *testing.T) {
	f := newFixture(t)
	eq := f.addEquipment("t1")
	v := f.create(t, eq, TypeTesteAceitacao, 0)
	note := "laudo 123"
	_, err := f.svc.Execute(ctxFor("t1", plan.Enterprise), v.ID, ExecuteInput{Notes: &note})
	require.NoError(t, err)

	_, err = f.svc.Invalidate(context.Background(), "t1", eq)
	require.NoError(t, err)
	assert.Equal(t, InvalidatedNote+" laudo 123", notes(f.repo.store[v.ID]))
}

func TestInvalidate_OtherTenantUntouched(t *testing.T) {
	f := newFixture(t)
	eq := f.addEquipment("t1")
	done := f.executed(t, eq, TypeControleQualidade)

	res, err := f.svc.Invalidate(context.Background(), "t2", eq)
	require.NoError(t, err)
	assert.Zero(t, res.Reset)
	assert.Equal(t, servicerecord.Realizada, f.repo.store[done].Status)
}

func TestEnsurePending_CreatesMissingTypes(t *testing.T) {
	f := newFixture(t)
	eq := f.addEquipment("t1")
	provider := "Radioproteção Ltda"

	older := f.create(t, eq, TypeLevantamentoRadiometrico, 24)
	_, err := f.svc.Execute(ctxFor("t1", plan.Enterprise), older.ID, ExecuteInput{ExecutionDate: day(2024, 6, 1)})
	require.NoError(t, err)
	// Drop the regenerated successor so the type has no pending test.
	for id, tt := range f.repo.store {
		if tt.Status == servicerecord.Agendada {
			delete(f.repo.store, id)
		}
	}
	latest, err := f.svc.Create(ctxFor("t1", plan.Enterprise), CreateInput{
		EquipmentID: eq, Type: TypeLevantamentoRadiometrico, Provider: &provider,
		ScheduledDate: day(2024, 6, 1), DueDate: day(2024, 6, 1), PeriodicityMonths: 6,
	})
	require.NoError(t, err)
	_, err = f.svc.Execute(ctxFor("t1", plan.Enterprise), latest.ID, ExecuteInput{ExecutionDate: day(2024, 6, 1)})
	require.NoError(t, err)
	for id, tt := range f.repo.store {
		if tt.Status == servicerecord.Agendada {
			delete(f.repo.store, id)
		}
	}

	created, err := f.svc.ensurePending(context.Background(), "t1", eq, []TestType{TypeLevantamentoRadiometrico})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	var gen *MedicalPhysicsTest
	for _, tt := range f.repo.forEquipment(eq) {
		tt := tt
		if tt.SystemGenerated {
			gen = &tt
		}
	}
	require.NotNil(t, gen)
	assert.Equal(t, servicerecord.Agendada, gen.Status)
	assert.Equal(t, now, gen.ScheduledDate)
	assert.Equal(t, now.AddDate(0, 0, 30), gen.DueDate)
	assert.Equal(t, 6, gen.PeriodicityMonths, "inherits from the most recent record")
	assert.Equal(t, provider, *gen.Provider)
	assert.Equal(t, GeneratedNote, notes(*gen))

	created, err = f.svc.ensurePending(context.Background(), "t1", eq, []TestType{TypeLevantamentoRadiometrico})
	require.NoError(t, err)
	assert.Zero(t, created, "idempotent once a pending test exists")
}

func TestInvalidate_StorageFailure(t *testing.T) {
	f := newFixture(t)
	eq := f.addEquipment("t1")
	f.executed(t, eq, TypeControleQualidade)
	f.repo.failOn = "reset"

	_, err := f.svc.Invalidate(context.Background(), "t1", eq)
	assert.ErrorIs(t, err, errDB)
}

// -- Resolution end to end --

type ticketEquipment struct{ fakeEquipment }

func (e ticketEquipment) SetStatus(_ context.Context, _ string, id uuid.UUID, st equipment.Status) error {
	e.fakeEquipment[id].Status = st
	return nil
}

type anyAssignee struct{}

func (anyAssignee) RequireAssignee(context.Context, string, uuid.UUID) error { return nil }

type noOrders struct{}

func (noOrders) OpenForCorrective(_ context.Context, tenantID string, cmID, eqID uuid.UUID) (*serviceorder.ServiceOrder, error) {
	return &serviceorder.ServiceOrder{TenantID: tenantID, CorrectiveMaintenanceID: &cmID, EquipmentID: eqID}, nil
}

type ticketRepo struct {
	tickets map[uuid.UUID]corrective.CorrectiveMaintenance
}

func (r *ticketRepo) Create(_ context.Context, cm *corrective.CorrectiveMaintenance) error {
	cm.ID = uuid.New()
	r.tickets[cm.ID] = *cm
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, _ string, id uuid.UUID) (*corrective.CorrectiveMaintenance, error) {
	cm := r.tickets[id]
	return &cm, nil
}

func (r *ticketRepo) List(context.Context, string, corrective.Filter, int, int) ([]*corrective.CorrectiveMaintenance, int, error) {
	return nil, 0, nil
}

func (r *ticketRepo) set(id uuid.UUID, st corrective.Status) (bool, error) {
	cm := r.tickets[id]
	cm.Status = st
	r.tickets[id] = cm
	return true, nil
}

func (r *ticketRepo) Accept(_ context.Context, _ string, id, _ uuid.UUID, _ time.Time) (bool, error) {
	return r.set(id, corrective.StatusEmAtendimento)
}

func (r *ticketRepo) Resolve(_ context.Context, _ string, id uuid.UUID, _ corrective.ResolveInput, _ time.Time) (bool, error) {
	return r.set(id, corrective.StatusResolvido)
}

func (r *ticketRepo) Close(_ context.Context, _ string, id uuid.UUID, _ time.Time) (bool, error) {
	return r.set(id, corrective.StatusFechado)
}

func TestResolvingTicketInvalidatesTests(t *testing.T) {
	f := newFixture(t)
	eq := f.addEquipment("t1")
	done := f.executed(t, eq, TypeRadiacaoFuga)

	bus := events.NewBus(zerolog.Nop())
	f.svc.Subscribe(bus)
	tickets := &ticketRepo{tickets: map[uuid.UUID]corrective.CorrectiveMaintenance{}}
	cs := corrective.NewService(tickets, ticketEquipment{f.equipment}, anyAssignee{}, noOrders{},
		bus, db.NoTx{}, f.clock, zerolog.Nop())

	// Resolution must invalidate even when the plan no longer covers physics.
	ctx := plan.WithTier(db.WithTenant(context.Background(), "t1"), plan.Basico)
	v, err := cs.Open(ctx, corrective.OpenInput{EquipmentID: eq, Description: "tubo com arco"})
	require.NoError(t, err)
	_, err = cs.Accept(ctx, v.ID, corrective.AcceptInput{AssignedToID: uuid.New()})
	require.NoError(t, err)
	_, err = cs.Resolve(ctx, v.ID, corrective.ResolveInput{Solution: "troca do tubo"})
	require.NoError(t, err)

	assert.Equal(t, servicerecord.Agendada, f.repo.store[done].Status)
	assert.True(t, strings.HasPrefix(notes(f.repo.store[done]), InvalidatedNote))
}

func TestResolvingTicketFailsWhenInvalidationFails(t *testing.T) {
	f := newFixture(t)
	eq := f.addEquipment("t1")
	f.executed(t, eq, TypeRadiacaoFuga)
	f.repo.failOn = "reset"

	bus := events.NewBus(zerolog.Nop())
	f.svc.Subscribe(bus)
	tickets := &ticketRepo{tickets: map[uuid.UUID]corrective.CorrectiveMaintenance{}}
	cs := corrective.NewService(tickets, ticketEquipment{f.equipment}, anyAssignee{}, noOrders{},
		bus, db.NoTx{}, f.clock, zerolog.Nop())

	ctx := db.WithTenant(context.Background(), "t1")
	v, err := cs.Open(ctx, corrective.OpenInput{EquipmentID: eq, Description: "tubo com arco"})
	require.NoError(t, err)
	_, err = cs.Accept(ctx, v.ID, corrective.AcceptInput{AssignedToID: uuid.New()})
	require.NoError(t, err)

	_, err = cs.Resolve(ctx, v.ID, corrective.ResolveInput{Solution: "troca do tubo"})
	assert.ErrorIs(t, err, errDB)
}
