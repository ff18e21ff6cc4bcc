package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// TenantFilter narrows tenant listings.
type TenantFilter struct {
	Page
	Search    string
	Suspended *bool
	PlanID    catalogue.PlanID
}

// SubscriptionFilter narrows subscription listings.
type SubscriptionFilter struct {
	Page
	TenantID string
	Status   SubscriptionStatus
	PlanID   catalogue.PlanID
}

// PaymentFilter narrows payment listings. Paid bounds apply to paid_at.
type PaymentFilter struct {
	Page
	TenantID string
	Status   PaymentStatus
	PaidFrom *time.Time
	PaidTo   *time.Time
}

// LinkInfo is what the gateway returned for a checkout.
type LinkInfo struct {
	LinkID      string
	CheckoutURL string
	QRCode      string
}

// TenantStore persists tenants. CreateTenant enforces slug and email
// uniqueness with ErrSlugTaken and ErrEmailTaken.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	UpdateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	GetTenantByEmail(ctx context.Context, email string) (*Tenant, error)
	TenantTaken(ctx context.Context, slug, email string) (slugTaken, emailTaken bool, err error)
	ListTenants(ctx context.Context, f TenantFilter) ([]Tenant, int64, error)
	CountTenants(ctx context.Context, suspended *bool) (int64, error)
}

// SubscriptionStore persists subscriptions.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, s *Subscription) error
	UpdateSubscription(ctx context.Context, s *Subscription) error
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	// CurrentSubscription returns the tenant's trial or active subscription,
	// or ErrSubscriptionNotFound.
	CurrentSubscription(ctx context.Context, tenantID string) (*Subscription, error)
	// DueSubscriptions returns live paid-plan subscriptions with period_end before t.
	DueSubscriptions(ctx context.Context, before time.Time, limit int) ([]Subscription, error)
	// TrialsEndingBefore returns trials ending before t without a sent reminder.
	TrialsEndingBefore(ctx context.Context, before time.Time, limit int) ([]Subscription, error)
	ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]Subscription, int64, error)
	CountSubscriptions(ctx context.Context, status SubscriptionStatus) (int64, error)
}

// PendingStore persists pending registrations.
type PendingStore interface {
	CreatePending(ctx context.Context, p *PendingRegistration) error
	UpdatePending(ctx context.Context, p *PendingRegistration) error
	GetPending(ctx context.Context, id string) (*PendingRegistration, error)
	// PendingReserved reports whether a live registration holds slug or email at now.
	PendingReserved(ctx context.Context, slug, email string, now time.Time) (slugTaken, emailTaken bool, err error)
	// ExpiredPending returns awaiting registrations with expires_at before t.
	ExpiredPending(ctx context.Context, before time.Time, limit int) ([]PendingRegistration, error)
}

// PaymentStore persists payments. Status changes are conditional single
// document updates so concurrent settlement cannot double-apply.
type PaymentStore interface {
	// CreatePayment fails with ErrDuplicateOrderCode on a reused order code.
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	GetPaymentByOrderCode(ctx context.Context, orderCode int64) (*Payment, error)
	SetPaymentLink(ctx context.Context, id string, link LinkInfo) error
	// MarkPaymentPaid moves a pending, failed or expired payment to paid and
	// returns the stored payment. changed is false when it was already paid.
	MarkPaymentPaid(ctx context.Context, id, transactionID string, paidAt time.Time, gatewayPaidAt *time.Time) (p *Payment, changed bool, err error)
	// ClosePayment moves a pending payment to failed or expired.
	// changed is false when the payment was no longer pending.
	ClosePayment(ctx context.Context, id string, status PaymentStatus, reason string) (changed bool, err error)
	LinkPayment(ctx context.Context, id, tenantID, subscriptionID string) error
	FlagPaymentResolution(ctx context.Context, id, reason string) error
	ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, int64, error)
	// PaidBetween returns paid payments with from <= paid_at < to, oldest first.
	PaidBetween(ctx context.Context, from, to time.Time) ([]Payment, error)
	CountPayments(ctx context.Context, status PaymentStatus) (int64, error)
}

// Store is the full entitlement store.
type Store interface {
	TenantStore
	SubscriptionStore
	PendingStore
	PaymentStore
}
