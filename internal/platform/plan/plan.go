// Package plan resolves what a tenant's subscription tier allows. The tier is
// supplied by the authorization layer; services only read it.
package plan

import (
	"context"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

type Tier string

const (
	Basico       Tier = "BASICO"
	Profissional Tier = "PROFISSIONAL"
	Enterprise   Tier = "ENTERPRISE"
)

type Feature string

const (
	FeaturePhysicsTests Feature = "physics_tests"
	FeatureChecklists   Feature = "checklists"
)

var serviceTypesByTier = map[Tier][]string{
	Basico:       {"PREVENTIVA"},
	Profissional: {"PREVENTIVA", "CALIBRACAO"},
	Enterprise:   {"PREVENTIVA", "CALIBRACAO", "TSE"},
}

var featuresByTier = map[Tier][]Feature{
	Basico:       nil,
	Profissional: {FeatureChecklists},
	Enterprise:   {FeatureChecklists, FeaturePhysicsTests},
}

func (t Tier) Valid() bool {
	_, ok := serviceTypesByTier[t]
	return ok
}

// ServiceTypes lists the preventive service types the tier may schedule.
func (t Tier) ServiceTypes() []string {
	return append([]string(nil), serviceTypesByTier[t]...)
}

func (t Tier) AllowsServiceType(serviceType string) bool {
	for _, st := range serviceTypesByTier[t] {
		if st == serviceType {
			return true
		}
	}
	return false
}

func (t Tier) Has(f Feature) bool {
	for _, have := range featuresByTier[t] {
		if have == f {
			return true
		}
	}
	return false
}

type contextKey struct{}

func WithTier(ctx context.Context, t Tier) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

func FromContext(ctx context.Context) (Tier, bool) {
	t, ok := ctx.Value(contextKey{}).(Tier)
	return t, ok && t.Valid()
}

// RequireServiceType fails with a Forbidden error unless the tier bound to ctx
// allows serviceType.
func RequireServiceType(ctx context.Context, serviceType string) error {
	t, ok := FromContext(ctx)
	if !ok {
		return apperr.Forbidden("plano de assinatura não identificado")
	}
	if !t.AllowsServiceType(serviceType) {
		return apperr.Forbidden("o plano %s não permite o serviço %s", t, serviceType)
	}
	return nil
}

// RequireFeature fails with a Forbidden error unless the tier bound to ctx has f.
func RequireFeature(ctx context.Context, f Feature) error {
	t, ok := FromContext(ctx)
	if !ok {
		return apperr.Forbidden("plano de assinatura não identificado")
	}
	if !t.Has(f) {
		return apperr.Forbidden("o plano %s não inclui %s", t, f)
	}
	return nil
}
