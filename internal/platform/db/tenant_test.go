package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicaleng/cmms/internal/platform/plan"
)

func TestResolveTenantID(t *testing.T) {
	tests := []struct {
		name   string
		claim  string
		header string
		query  string
		want   string
	}{
		{name: "claim wins over everything", claim: "jwt_t", header: "hdr_t", query: "q_t", want: "jwt_t"},
		{name: "header over query", header: "hdr_t", query: "q_t", want: "hdr_t"},
		{name: "query only", query: "q_t", want: "q_t"},
		{name: "empty claim falls through", claim: "", header: "hdr_t", want: "hdr_t"},
		{name: "fallback", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.query != "" {
				target += "?tenant_id=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-ID", tt.header)
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())
			c.Set("jwt_tenant_id", tt.claim)

			assert.Equal(t, tt.want, resolveTenantID(c, "default"))
		})
	}
}

func TestTenantIDPattern(t *testing.T) {
	for _, id := range []string{"a", "hospital_1", "HC_Sao_Paulo_2024", "A1B2C3"} {
		assert.True(t, tenantIDPattern.MatchString(id), id)
	}
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'x'
	}
	for _, id := range []string{"", "a-b", "a.b", "a b", "a/b", "'; DROP TABLE tenant", "tenant@1", string(long)} {
		assert.False(t, tenantIDPattern.MatchString(id), id)
	}
}

func TestTenantContext(t *testing.T) {
	ctx := context.Background()

	_, err := RequireTenant(ctx)
	assert.ErrorIs(t, err, ErrNoTenant)
	assert.Empty(t, TenantFromContext(context.WithValue(ctx, TenantIDKey, 42)))
	assert.Nil(t, ConnFromContext(ctx))
	assert.Nil(t, ConnFromContext(context.WithValue(ctx, DBConnKey, "not-a-conn")))

	tid, err := RequireTenant(WithTenant(ctx, "hospital_abc"))
	require.NoError(t, err)
	assert.Equal(t, "hospital_abc", tid)
}

func TestCreateTenant_RejectsBeforeTouchingTheDatabase(t *testing.T) {
	ctx := context.Background()
	for _, id := range []string{"invalid-id!", "tenant.with.dot", "ten ant", "drop;table"} {
		assert.Error(t, CreateTenant(ctx, nil, id, "", plan.Basico), id)
	}
	assert.ErrorContains(t, CreateTenant(ctx, nil, "ok_id", "", plan.Tier("GOLD")), "invalid plan")
	assert.Error(t, EnsureTenant(ctx, nil, "bad-id", plan.Enterprise))
}

func TestTenantMiddleware_RejectsMalformedID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "../etc")
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := TenantMiddleware(nil, "default")(func(echo.Context) error {
		called = true
		return nil
	})(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.False(t, called)
}
