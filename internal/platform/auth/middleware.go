package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/clinicaleng/cmms/internal/platform/plan"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// Roles issued by the identity provider.
const (
	RoleMaster      = "MASTER"
	RoleTecnico     = "TECNICO"
	RoleSolicitante = "SOLICITANTE"
)

// Claims carries the tenant, roles and subscription tier of the caller. The
// subject is the caller's staff id.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	Plan     string   `json:"plan"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 validation; otherwise keys come from JWKSURL.
	SigningKey []byte
	// DefaultPlan applies to tokens without a plan claim.
	DefaultPlan plan.Tier
}

// validMethods pins the accepted algorithm to the configured key source.
func (cfg JWTConfig) validMethods() []string {
	if len(cfg.SigningKey) > 0 {
		return []string{jwt.SigningMethodHS256.Alg()}
	}
	return []string{jwt.SigningMethodRS256.Alg()}
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods(cfg.validMethods())}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var keyFunc jwt.Keyfunc
	if len(cfg.SigningKey) > 0 {
		keyFunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	} else {
		keyFunc = jwksKeyFunc(NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.TenantID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no tenant")
			}

			tier := plan.Tier(claims.Plan)
			if !tier.Valid() {
				tier = cfg.DefaultPlan
			}
			setIdentity(c, claims.TenantID, claims.Subject, claims.Roles, tier)
			return next(c)
		}
	}
}

// DevAuthMiddleware grants a MASTER identity on the ENTERPRISE tier to every
// request. Development only.
func DevAuthMiddleware(defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenant := defaultTenant
			if tid := c.Request().Header.Get("X-Tenant-ID"); tid != "" {
				tenant = tid
			}
			setIdentity(c, tenant, "dev-user", []string{RoleMaster}, plan.Enterprise)
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, tenantID, userID string, roles []string, tier plan.Tier) {
	c.Set("jwt_tenant_id", tenantID)

	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	ctx = plan.WithTier(ctx, tier)
	c.SetRequest(c.Request().WithContext(ctx))
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// WithIdentity binds a user and roles to ctx outside of HTTP (CLI, tests).
func WithIdentity(ctx context.Context, userID string, roles ...string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRolesKey, roles)
}
