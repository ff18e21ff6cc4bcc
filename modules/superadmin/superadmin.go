// Package superadmin is the back office API mounted under /super-admin.
package superadmin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/modules/apierr"
	"github.com/dmitrymomot/qrmenu/pkg/ratelimit"
	"github.com/dmitrymomot/qrmenu/svc/admin"
	"github.com/dmitrymomot/qrmenu/svc/billing"
)

// Admin is the back office service.
type Admin interface {
	Login(ctx context.Context, email, password string) (*admin.Token, error)
	Dashboard(ctx context.Context) (*admin.Dashboard, error)
	Stores(ctx context.Context, f billing.TenantFilter) ([]billing.Tenant, int64, error)
	Store(ctx context.Context, tenantID string) (*admin.StoreDetail, error)
	Suspend(ctx context.Context, tenantID, reason string) (*billing.Tenant, error)
	Activate(ctx context.Context, tenantID string) (*billing.Tenant, error)
	Subscriptions(ctx context.Context, f billing.SubscriptionFilter) ([]billing.Subscription, int64, error)
	Payments(ctx context.Context, f billing.PaymentFilter) ([]billing.Payment, int64, error)
	Revenue(ctx context.Context, period admin.Period) (*admin.Revenue, error)
}

type Middleware = func(http.Handler) http.Handler

type Module struct {
	admin        Admin
	auth         []Middleware
	limiter      *ratelimit.Limiter
	errorHandler handler.ErrorHandler
}

type Option func(*Module)

// WithAuth sets the middleware chain guarding every route but login.
func WithAuth(mw ...Middleware) Option {
	return func(m *Module) { m.auth = append(m.auth, mw...) }
}

// WithLoginLimiter throttles login attempts per client IP.
func WithLoginLimiter(l *ratelimit.Limiter) Option {
	return func(m *Module) { m.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) { m.errorHandler = apierr.Handler(l) }
}

func New(a Admin, opts ...Option) *Module {
	if a == nil {
		panic("superadmin: admin service is required")
	}
	m := &Module{admin: a, errorHandler: apierr.Handler(nil)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if m.limiter != nil {
			r.Use(ratelimit.Middleware(m.limiter, ratelimit.KeyByIP))
		}
		r.Post("/login", wrap(m, m.login, bindJSON))
	})

	r.Group(func(r chi.Router) {
		r.Use(m.auth...)
		r.Get("/dashboard", wrap(m, m.dashboard))
		r.Get("/stores", wrap(m, m.stores, bindQuery))
		r.Get("/stores/{id}", wrap(m, m.store, bindPath))
		r.Put("/stores/{id}/suspend", wrap(m, m.suspend, bindPath, bindOptionalJSON))
		r.Put("/stores/{id}/activate", wrap(m, m.activate, bindPath))
		r.Get("/subscriptions", wrap(m, m.subscriptions, bindQuery))
		r.Get("/payments", wrap(m, m.payments, bindQuery))
		r.Get("/revenue", wrap(m, m.revenue, bindQuery))
	})

	return r
}
