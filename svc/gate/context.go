package gate

import (
	"context"

	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/svc/billing"
)

type accessKey struct{}

// WithAccess stores the tenant's entitlement view in ctx.
func WithAccess(ctx context.Context, a *billing.Access) context.Context {
	return context.WithValue(ctx, accessKey{}, a)
}

// AccessFromContext returns the entitlement loaded by Authenticate. It is
// absent for super-admin requests.
func AccessFromContext(ctx context.Context) (*billing.Access, bool) {
	a, ok := ctx.Value(accessKey{}).(*billing.Access)
	return a, ok && a != nil
}

// TenantID returns the authenticated owner's tenant.
func TenantID(ctx context.Context) (string, bool) {
	c, ok := jwt.ClaimsFromContext(ctx)
	if !ok || c.TenantID == "" {
		return "", false
	}
	return c.TenantID, true
}

// IsSuperAdmin reports whether the request carries a super-admin token.
func IsSuperAdmin(ctx context.Context) bool {
	c, ok := jwt.ClaimsFromContext(ctx)
	return ok && c.IsSuperAdmin()
}
