// Package subscriptions is the owner-facing billing API mounted under
// /subscriptions.
package subscriptions

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/modules/apierr"
	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/ratelimit"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// Billing is the part of the billing service this module exposes.
type Billing interface {
	CurrentEntitlement(ctx context.Context, tenantID string) (*billing.Entitlement, error)
	ActivateTrial(ctx context.Context, tenantID string) (*billing.Subscription, error)
	CreateCheckoutForUpgrade(ctx context.Context, tenantID string, target catalogue.PlanID) (*billing.Checkout, error)
	CreateCheckoutForRegistration(ctx context.Context, in billing.Registration) (*billing.Checkout, error)
	RegisterFree(ctx context.Context, in billing.Registration) (*billing.Tenant, error)
	GetPendingRegistration(ctx context.Context, id string) (*billing.PendingRegistration, error)
	Cancel(ctx context.Context, tenantID string, immediate bool) (*billing.Cancellation, error)
	ListInvoices(ctx context.Context, tenantID string, page billing.Page) ([]billing.Payment, int64, error)
	GetPayment(ctx context.Context, tenantID, paymentID string) (*billing.Payment, error)
	ConfirmPayment(ctx context.Context, paymentID string) (*billing.Payment, error)
	CancelCheckout(ctx context.Context, tenantID, paymentID string) (*billing.Payment, error)
}

// Plans lists purchasable plans.
type Plans interface {
	ListActivePlans() []catalogue.Plan
}

// Issuer signs owner tokens for freshly registered tenants.
type Issuer interface {
	Issue(subject string, role jwt.Role, tenantID, email string) (string, time.Time, error)
}

// Middleware is an http middleware.
type Middleware = func(http.Handler) http.Handler

type Module struct {
	billing      Billing
	plans        Plans
	tokens       Issuer
	owner        []Middleware
	limiter      *ratelimit.Limiter
	errorHandler handler.ErrorHandler
}

type Option func(*Module)

// WithOwnerAuth sets the middleware chain guarding owner routes.
func WithOwnerAuth(mw ...Middleware) Option {
	return func(m *Module) { m.owner = append(m.owner, mw...) }
}

// WithRegistrationLimiter throttles the public signup routes per client IP.
func WithRegistrationLimiter(l *ratelimit.Limiter) Option {
	return func(m *Module) { m.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) { m.errorHandler = apierr.Handler(l) }
}

func New(b Billing, plans Plans, tokens Issuer, opts ...Option) *Module {
	if b == nil || plans == nil || tokens == nil {
		panic("subscriptions: billing, plans and token issuer are required")
	}
	m := &Module{
		billing:      b,
		plans:        plans,
		tokens:       tokens,
		errorHandler: apierr.Handler(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/plans", wrap(m, m.listPlans))
	r.Get("/registrations/{pending_id}", wrap(m, m.registrationStatus, bindPath))

	r.Group(func(r chi.Router) {
		if m.limiter != nil {
			r.Use(ratelimit.Middleware(m.limiter, ratelimit.KeyByIP))
		}
		r.Post("/create-checkout-for-registration", wrap(m, m.checkoutForRegistration, bindJSON))
		r.Post("/register", wrap(m, m.register, bindJSON))
	})

	r.Group(func(r chi.Router) {
		r.Use(m.owner...)
		r.Get("/current", wrap(m, m.current))
		r.Post("/activate-trial", wrap(m, m.activateTrial))
		r.Post("/create-checkout", wrap(m, m.checkout, bindJSON))
		r.Post("/cancel", wrap(m, m.cancel, bindQuery))
		r.Get("/invoices", wrap(m, m.invoices, bindQuery))
		r.Get("/payments/{id}/status", wrap(m, m.paymentStatus, bindPath))
		r.Post("/payments/{id}/cancel", wrap(m, m.cancelPayment, bindPath))
		r.Get("/payments/{id}/qr.png", wrap(m, m.paymentQR, bindPath))
	})

	return r
}
