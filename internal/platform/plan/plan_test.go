package plan

import (
	"context"
	"testing"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

func TestTier_AllowsServiceType(t *testing.T) {
	tests := []struct {
		tier    Tier
		service string
		want    bool
	}{
		{Basico, "PREVENTIVA", true},
		{Basico, "CALIBRACAO", false},
		{Basico, "TSE", false},
		{Profissional, "CALIBRACAO", true},
		{Profissional, "TSE", false},
		{Enterprise, "TSE", true},
		{Enterprise, "LIMPEZA", false},
		{Tier("GRATIS"), "PREVENTIVA", false},
	}
	for _, tt := range tests {
		if got := tt.tier.AllowsServiceType(tt.service); got != tt.want {
			t.Errorf("%s.AllowsServiceType(%s) = %v, want %v", tt.tier, tt.service, got, tt.want)
		}
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no tier on empty context")
	}
	if _, ok := FromContext(WithTier(context.Background(), Tier("bogus"))); ok {
		t.Error("invalid tiers must not resolve")
	}
	tier, ok := FromContext(WithTier(context.Background(), Profissional))
	if !ok || tier != Profissional {
		t.Errorf("expected PROFISSIONAL, got %v (%v)", tier, ok)
	}
}

func TestRequireServiceType(t *testing.T) {
	if err := RequireServiceType(context.Background(), "PREVENTIVA"); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("expected forbidden without tier, got %v", err)
	}
	ctx := WithTier(context.Background(), Basico)
	if err := RequireServiceType(ctx, "PREVENTIVA"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := RequireServiceType(ctx, "TSE"); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("expected forbidden for TSE on BASICO, got %v", err)
	}
}

func TestRequireFeature(t *testing.T) {
	if err := RequireFeature(WithTier(context.Background(), Enterprise), FeaturePhysicsTests); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := RequireFeature(WithTier(context.Background(), Profissional), FeaturePhysicsTests); err == nil {
		t.Error("expected PROFISSIONAL to lack physics tests")
	}
}
