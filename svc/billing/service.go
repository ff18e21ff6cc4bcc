package billing

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/qrmenu/pkg/locker"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

// orderCodeAttempts bounds retries on a duplicate gateway order code.
const orderCodeAttempts = 5

// Plans is the read side of the plan catalogue.
type Plans interface {
	Snapshot() *catalogue.Snapshot
}

// Service is the entitlement state machine. Every state change for one
// tenant runs under that tenant's lock; notifications are sent after the
// lock is released.
type Service struct {
	store    Store
	plans    Plans
	gateway  gateway.Adapter
	locker   locker.Locker
	notifier Notifier
	metrics  *Metrics
	log      *slog.Logger
	now      func() time.Time
	cfg      Config
	counters map[ResourceKind]Counter
	codes    func(now time.Time) int64
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the lifecycle configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithLocker replaces the in-process locker, typically with a Redis one.
func WithLocker(l locker.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithNotifier sets the email notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithMetrics sets the counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithResourceCounter registers the counter for a capped resource kind.
func WithResourceCounter(kind ResourceKind, c Counter) Option {
	return func(s *Service) {
		if c != nil {
			s.counters[kind] = c
		}
	}
}

// WithOrderCodes overrides the gateway order code generator.
func WithOrderCodes(gen func(now time.Time) int64) Option {
	return func(s *Service) {
		if gen != nil {
			s.codes = gen
		}
	}
}

// New creates the service. Store, plans and gateway are required.
func New(store Store, plans Plans, gw gateway.Adapter, opts ...Option) *Service {
	if store == nil {
		panic("billing: store is required")
	}
	if plans == nil {
		panic("billing: plans are required")
	}
	if gw == nil {
		panic("billing: gateway is required")
	}
	s := &Service{
		store:    store,
		plans:    plans,
		gateway:  gw,
		locker:   locker.NewMemory(),
		notifier: nopNotifier{},
		log:      slog.Default(),
		now:      time.Now,
		cfg:      DefaultConfig(),
		counters: make(map[ResourceKind]Counter),
		codes:    nextOrderCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.cfg = s.cfg.normalize()
	s.log = s.log.With(logger.Component("billing"))
	return s
}

// Metrics returns the service counters.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Mode reports whether the gateway is live or mocked.
func (s *Service) Mode() gateway.Mode { return s.gateway.Mode() }

// VerifyWebhook checks a raw webhook body against its signature header.
func (s *Service) VerifyWebhook(payload []byte, signature string) bool {
	return s.gateway.VerifyWebhook(payload, signature)
}

// WithTenantLock runs fn under the lock that serializes every state change
// of one tenant.
func (s *Service) WithTenantLock(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	return locker.WithLock(ctx, s.locker, tenantKey(tenantID), fn)
}

func tenantKey(id string) string  { return "tenant:" + id }
func pendingKey(id string) string { return "pending:" + id }
func slugKey(slug string) string  { return "slug:" + slug }
func emailKey(email string) string {
	return "email:" + email
}

// withIdentityLocks serializes registration attempts on the same slug or
// email. Keys are always taken slug first.
func (s *Service) withIdentityLocks(ctx context.Context, slug, email string, fn func(ctx context.Context) error) error {
	return locker.WithLock(ctx, s.locker, slugKey(slug), func(ctx context.Context) error {
		return locker.WithLock(ctx, s.locker, emailKey(email), fn)
	})
}

// currentSubscription returns the live subscription or nil.
func (s *Service) currentSubscription(ctx context.Context, tenantID string) (*Subscription, error) {
	sub, err := s.store.CurrentSubscription(ctx, tenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, nil
	}
	return sub, err
}

// applyFacet mirrors a live subscription onto the tenant.
func applyFacet(t *Tenant, sub *Subscription) {
	t.Facet = Facet{
		CurrentPlanID:     sub.PlanID,
		EntitlementStatus: entitlementOf(sub.Status),
		MaxResourceUnits:  clonePtr(sub.MaxResourceUnits),
		SubscriptionID:    sub.ID,
	}
}

// downgradeToFree points the tenant facet at the free plan while keeping
// the terminal status it mirrors.
func downgradeToFree(t *Tenant, free catalogue.Plan, status EntitlementStatus, subID string) {
	t.Facet = Facet{
		CurrentPlanID:     catalogue.PlanFree,
		EntitlementStatus: status,
		MaxResourceUnits:  clonePtr(free.MaxResourceUnits),
		SubscriptionID:    subID,
	}
}

// freeFacet is the facet of a tenant that never had a subscription.
func freeFacet(free catalogue.Plan) Facet {
	return Facet{
		CurrentPlanID:     catalogue.PlanFree,
		EntitlementStatus: EntitlementNone,
		MaxResourceUnits:  clonePtr(free.MaxResourceUnits),
	}
}

// expireLocked persists a lapsed subscription as expired and downgrades
// the tenant. The caller holds the tenant lock.
func (s *Service) expireLocked(ctx context.Context, t *Tenant, sub *Subscription, now time.Time) error {
	next, err := lifecycle.Next(sub.Status, eventExpire)
	if err != nil {
		return err
	}
	sub.Status = next
	sub.UpdatedAt = now
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	downgradeToFree(t, s.plans.Snapshot().Free(), EntitlementExpired, sub.ID)
	t.UpdatedAt = now
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return err
	}
	s.metrics.subscriptionsExpired.Inc()
	s.log.InfoContext(ctx, "subscription expired",
		logger.Event("subscription_expired"),
		logger.TenantID(t.ID),
		logger.SubscriptionID(sub.ID),
		logger.PlanID(string(sub.PlanID)),
	)
	return nil
}

// newSubscription builds a subscription record. It is not persisted.
func (s *Service) newSubscription(tenantID string, plan catalogue.Plan, status SubscriptionStatus, now, end time.Time) *Subscription {
	return &Subscription{
		ID:               uuid.NewString(),
		TenantID:         tenantID,
		PlanID:           plan.ID,
		Status:           status,
		PeriodStart:      now,
		PeriodEnd:        end,
		MaxResourceUnits: clonePtr(plan.MaxResourceUnits),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// createPayment inserts p, drawing a fresh order code on collision.
func (s *Service) createPayment(ctx context.Context, p *Payment) error {
	var err error
	for range orderCodeAttempts {
		p.OrderCode = s.codes(s.now())
		err = s.store.CreatePayment(ctx, p)
		if !errors.Is(err, ErrDuplicateOrderCode) {
			return err
		}
	}
	return err
}

// nextOrderCode yields a positive code below 2^53 that is increasing in
// time with a random low part.
func nextOrderCode(now time.Time) int64 {
	return (now.UnixMilli()%1_000_000_000_000)*1000 + rand.Int64N(1000)
}

// notify runs a notification and records its failure without returning it.
func (s *Service) notify(ctx context.Context, kind string, send func(ctx context.Context) error) {
	if err := send(ctx); err != nil {
		s.metrics.notificationsFailed.WithLabelValues(kind).Inc()
		s.log.WarnContext(ctx, "notification failed",
			logger.Event("notification_failed"),
			slog.String("kind", kind),
			logger.Error(err),
		)
	}
}

// outbox collects notifications produced under a lock.
type outbox []func(ctx context.Context)

func (o *outbox) add(f func(ctx context.Context)) { *o = append(*o, f) }

func (o outbox) flush(ctx context.Context) {
	for _, f := range o {
		f(ctx)
	}
}
