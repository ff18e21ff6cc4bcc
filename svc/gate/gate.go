package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// Entitlements is the part of the billing service the gate reads.
type Entitlements interface {
	Access(ctx context.Context, tenantID string) (*billing.Access, error)
	CountResources(ctx context.Context, tenantID string, kind billing.ResourceKind) (int64, error)
	WithTenantLock(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
}

// Tokens verifies bearer tokens.
type Tokens interface {
	Parse(token string) (*jwt.Claims, error)
}

// ErrorHandler writes an error response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type Gate struct {
	ents    Entitlements
	tokens  Tokens
	onError ErrorHandler
	log     *slog.Logger
}

type Option func(*Gate)

// WithErrorHandler overrides how rejected requests are rendered.
func WithErrorHandler(h ErrorHandler) Option {
	return func(g *Gate) {
		if h != nil {
			g.onError = h
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// New creates a gate. It panics if ents or tokens is nil.
func New(ents Entitlements, tokens Tokens, opts ...Option) *Gate {
	if ents == nil {
		panic("gate: entitlements are required")
	}
	if tokens == nil {
		panic("gate: token verifier is required")
	}
	g := &Gate{
		ents:   ents,
		tokens: tokens,
		log:    slog.Default(),
	}
	g.onError = g.renderError
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) renderError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := handler.MapError(err, Errors)
	if handler.StatusOf(mapped) >= http.StatusInternalServerError {
		g.log.ErrorContext(r.Context(), "gate check failed",
			logger.Component("gate"),
			logger.Error(err),
			slog.String("path", r.URL.Path),
		)
	}
	_ = handler.JSONError(mapped).Render(w, r)
}

// Authenticate requires a valid bearer token. Owner requests get their
// entitlement loaded into the context; suspended tenants may only read.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := jwt.BearerToken(r)
		if err != nil {
			g.onError(w, r, err)
			return
		}
		claims, err := g.tokens.Parse(token)
		if err != nil {
			g.onError(w, r, err)
			return
		}
		ctx := jwt.WithClaims(r.Context(), claims)

		if claims.IsSuperAdmin() {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		if claims.Role != jwt.RoleOwner || claims.TenantID == "" {
			g.onError(w, r, ErrNotAuthenticated)
			return
		}

		access, err := g.ents.Access(ctx, claims.TenantID)
		if errors.Is(err, billing.ErrTenantNotFound) {
			err = errors.Join(ErrNotAuthenticated, err)
		}
		if err != nil {
			g.onError(w, r, err)
			return
		}
		if access.Suspended && !readOnly(r.Method) {
			g.onError(w, r, billing.ErrTenantSuspended)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccess(ctx, access)))
	})
}

// RequireSuperAdmin rejects everything but super-admin tokens. It must run
// after Authenticate.
func (g *Gate) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsSuperAdmin(r.Context()) {
			g.onError(w, r, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwner rejects requests without a tenant entitlement in context.
func (g *Gate) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AccessFromContext(r.Context()); !ok {
			g.onError(w, r, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireFeature admits the request when the effective plan grants f.
func (g *Gate) RequireFeature(f catalogue.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsSuperAdmin(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			access, ok := AccessFromContext(r.Context())
			if !ok {
				g.onError(w, r, ErrNotAuthenticated)
				return
			}
			if err := access.RequireFeature(f); err != nil {
				g.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckQuota admits the request when one more resource of kind fits under
// the cap. The answer may be stale by the time the handler inserts; use
// Reserve for the insert itself.
func (g *Gate) CheckQuota(kind billing.ResourceKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsSuperAdmin(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			access, ok := AccessFromContext(r.Context())
			if !ok {
				g.onError(w, r, ErrNotAuthenticated)
				return
			}
			current, err := g.ents.CountResources(r.Context(), access.TenantID, kind)
			if err != nil {
				g.onError(w, r, err)
				return
			}
			if err := access.CheckQuota(kind, current); err != nil {
				g.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Reserve runs create only when one more resource of kind fits under the
// tenant's cap. Counting and creating happen under the tenant lock, so
// concurrent reservations never exceed the cap.
func (g *Gate) Reserve(ctx context.Context, tenantID string, kind billing.ResourceKind, create func(ctx context.Context) error) error {
	return g.ents.WithTenantLock(ctx, tenantID, func(ctx context.Context) error {
		access, err := g.ents.Access(ctx, tenantID)
		if err != nil {
			return err
		}
		if access.Suspended {
			return billing.ErrTenantSuspended
		}
		current, err := g.ents.CountResources(ctx, tenantID, kind)
		if err != nil {
			return err
		}
		if err := access.CheckQuota(kind, current); err != nil {
			g.log.InfoContext(ctx, "resource quota reached",
				logger.Component("gate"),
				logger.TenantID(tenantID),
				slog.String("resource", string(kind)),
				slog.Int64("current", current),
			)
			return err
		}
		return create(ctx)
	})
}

func readOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
