package auth

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/clinicaleng/cmms/internal/platform/plan"
)

var testSigningKey = []byte("test-secret-key-for-jwt-signing")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-1",
			Issuer:    "cmms-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "hospital_a",
		Roles:    []string{RoleTecnico},
		Plan:     "PROFISSIONAL",
	}
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (echo.Context, error, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := JWTMiddleware(cfg)(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})
	err := handler(c)
	return c, err, called
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err, called := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	if called {
		t.Fatal("handler should not be called")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	_, err, _ := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Basic abc")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, validClaims(), []byte("other-key"))
	_, err, called := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	if called || err == nil {
		t.Fatal("expected rejection for wrong signing key")
	}
}

func TestJWTMiddleware_Expired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := createTestToken(t, claims, testSigningKey)
	_, err, called := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	if called || err == nil {
		t.Fatal("expected rejection for expired token")
	}
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)
	_, err, called := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "someone-else"}, "Bearer "+token)
	if called || err == nil {
		t.Fatal("expected rejection for wrong issuer")
	}
}

func TestJWTMiddleware_MissingTenant(t *testing.T) {
	claims := validClaims()
	claims.TenantID = ""
	token := createTestToken(t, claims, testSigningKey)
	_, err, called := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	if called || err == nil {
		t.Fatal("expected rejection for token without tenant")
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)
	c, err, called := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "cmms-test"}, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler was not called")
	}
	if got := c.Get("jwt_tenant_id"); got != "hospital_a" {
		t.Errorf("jwt_tenant_id = %v, want hospital_a", got)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "staff-1" {
		t.Errorf("user id = %q, want staff-1", got)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != RoleTecnico {
		t.Errorf("roles = %v", roles)
	}
	if got, _ := plan.FromContext(ctx); got != plan.Profissional {
		t.Errorf("tier = %q, want PROFISSIONAL", got)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "hospital_b")
	c := e.NewContext(req, httptest.NewRecorder())

	err := DevAuthMiddleware("default")(func(c echo.Context) error { return nil })(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Get("jwt_tenant_id"); got != "hospital_b" {
		t.Errorf("jwt_tenant_id = %v, want hospital_b", got)
	}
	ctx := c.Request().Context()
	if !HasAnyRole(RolesFromContext(ctx), RoleTecnico) {
		t.Error("dev identity should pass every role check")
	}
	if got, _ := plan.FromContext(ctx); got != plan.Enterprise {
		t.Errorf("tier = %q, want ENTERPRISE", got)
	}
}

func TestJWTMiddleware_DefaultPlan(t *testing.T) {
	claims := validClaims()
	claims.Plan = ""
	token := createTestToken(t, claims, testSigningKey)
	c, err, _ := runJWT(t, JWTConfig{SigningKey: testSigningKey, DefaultPlan: plan.Basico}, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := plan.FromContext(c.Request().Context()); got != plan.Basico {
		t.Errorf("tier = %q, want BASICO", got)
	}
}

func TestJWTConfig_ValidMethodsFollowKeySource(t *testing.T) {
	if got := (JWTConfig{SigningKey: testSigningKey}).validMethods(); len(got) != 1 || got[0] != "HS256" {
		t.Errorf("shared key methods = %v, want [HS256]", got)
	}
	if got := (JWTConfig{JWKSURL: "https://id.example/jwks"}).validMethods(); len(got) != 1 || got[0] != "RS256" {
		t.Errorf("jwks methods = %v, want [RS256]", got)
	}
}

func TestJWTMiddleware_HS256RejectedWhenUsingJWKS(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	defer srv.Close()

	token := createTestToken(t, validClaims(), testSigningKey)
	_, err, called := runJWT(t, JWTConfig{JWKSURL: srv.URL}, "Bearer "+token)
	if called || err == nil {
		t.Fatal("expected HS256 token to be rejected under JWKS validation")
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("key set fetched %d times; algorithm check should fail first", n)
	}
}
