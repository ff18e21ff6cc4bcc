// Package admin is the super-admin back office: login, dashboard counters,
// listings, store moderation and revenue roll-ups.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/billing"
)

// Directory is the read side of the billing store.
type Directory interface {
	GetTenant(ctx context.Context, id string) (*billing.Tenant, error)
	ListTenants(ctx context.Context, f billing.TenantFilter) ([]billing.Tenant, int64, error)
	CountTenants(ctx context.Context, suspended *bool) (int64, error)
	CurrentSubscription(ctx context.Context, tenantID string) (*billing.Subscription, error)
	ListSubscriptions(ctx context.Context, f billing.SubscriptionFilter) ([]billing.Subscription, int64, error)
	CountSubscriptions(ctx context.Context, status billing.SubscriptionStatus) (int64, error)
	ListPayments(ctx context.Context, f billing.PaymentFilter) ([]billing.Payment, int64, error)
	CountPayments(ctx context.Context, status billing.PaymentStatus) (int64, error)
	PaidBetween(ctx context.Context, from, to time.Time) ([]billing.Payment, error)
}

// Moderation suspends and reactivates tenants through the billing service.
type Moderation interface {
	Suspend(ctx context.Context, tenantID, reason string) (*billing.Tenant, error)
	Reactivate(ctx context.Context, tenantID string) (*billing.Tenant, error)
}

// Issuer signs access tokens.
type Issuer interface {
	Issue(subject string, role jwt.Role, tenantID, email string) (string, time.Time, error)
}

type Service struct {
	cfg    Config
	dir    Directory
	mod    Moderation
	tokens Issuer
	now    func() time.Time
	loc    *time.Location
	log    *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone revenue buckets are cut in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates the back office service. It panics on a nil dependency.
func New(cfg Config, dir Directory, mod Moderation, tokens Issuer, opts ...Option) *Service {
	if dir == nil || mod == nil || tokens == nil {
		panic("admin: directory, moderation and token issuer are required")
	}
	s := &Service{
		cfg:    cfg,
		dir:    dir,
		mod:    mod,
		tokens: tokens,
		now:    time.Now,
		loc:    time.UTC,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("admin"))
	return s
}

// Token is an issued super-admin access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login checks the configured super-admin credential and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	if !s.cfg.enabled() {
		return nil, ErrLoginDisabled
	}
	email = strings.ToLower(strings.TrimSpace(email))
	want := strings.ToLower(strings.TrimSpace(s.cfg.Email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(want)) == 1
	hashErr := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password))
	if !emailOK || hashErr != nil {
		s.log.WarnContext(ctx, "super-admin login rejected", logger.Event("admin_login_failed"))
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(want, jwt.RoleSuperAdmin, "", want)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "super-admin logged in", logger.Event("admin_login"))
	return &Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp}, nil
}

// Dashboard is the back office landing counters.
type Dashboard struct {
	Stores              int64  `json:"total_stores"`
	SuspendedStores     int64  `json:"suspended_stores"`
	TrialSubscriptions  int64  `json:"trial_subscriptions"`
	ActiveSubscriptions int64  `json:"active_subscriptions"`
	PendingPayments     int64  `json:"pending_payments"`
	RevenueThisMonth    int64  `json:"revenue_this_month"`
	Currency            string `json:"currency"`
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{Currency: "VND"}
	suspended := true
	from, to := monthBounds(s.now().In(s.loc))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { d.Stores, err = s.dir.CountTenants(ctx, nil); return })
	g.Go(func() (err error) { d.SuspendedStores, err = s.dir.CountTenants(ctx, &suspended); return })
	g.Go(func() (err error) {
		d.TrialSubscriptions, err = s.dir.CountSubscriptions(ctx, billing.StatusTrial)
		return
	})
	g.Go(func() (err error) {
		d.ActiveSubscriptions, err = s.dir.CountSubscriptions(ctx, billing.StatusActive)
		return
	})
	g.Go(func() (err error) { d.PendingPayments, err = s.dir.CountPayments(ctx, billing.PaymentPending); return })
	g.Go(func() error {
		paid, err := s.dir.PaidBetween(ctx, from, to)
		if err != nil {
			return err
		}
		for _, p := range paid {
			d.RevenueThisMonth += p.AmountTotal
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Stores(ctx context.Context, f billing.TenantFilter) ([]billing.Tenant, int64, error) {
	return s.dir.ListTenants(ctx, f)
}

func (s *Service) Subscriptions(ctx context.Context, f billing.SubscriptionFilter) ([]billing.Subscription, int64, error) {
	return s.dir.ListSubscriptions(ctx, f)
}

func (s *Service) Payments(ctx context.Context, f billing.PaymentFilter) ([]billing.Payment, int64, error) {
	return s.dir.ListPayments(ctx, f)
}

// StoreDetail is one tenant with its current subscription and latest payments.
type StoreDetail struct {
	Tenant         *billing.Tenant       `json:"tenant"`
	Subscription   *billing.Subscription `json:"subscription"`
	RecentPayments []billing.Payment     `json:"recent_payments"`
}

const recentPayments = 10

func (s *Service) Store(ctx context.Context, tenantID string) (*StoreDetail, error) {
	t, err := s.dir.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	d := &StoreDetail{Tenant: t}

	sub, err := s.dir.CurrentSubscription(ctx, tenantID)
	switch {
	case err == nil:
		d.Subscription = sub
	case !errors.Is(err, billing.ErrSubscriptionNotFound):
		return nil, err
	}

	d.RecentPayments, _, err = s.dir.ListPayments(ctx, billing.PaymentFilter{
		TenantID: tenantID,
		Page:     billing.Page{Limit: recentPayments},
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Suspend(ctx context.Context, tenantID, reason string) (*billing.Tenant, error) {
	return s.mod.Suspend(ctx, tenantID, strings.TrimSpace(reason))
}

func (s *Service) Activate(ctx context.Context, tenantID string) (*billing.Tenant, error) {
	return s.mod.Reactivate(ctx, tenantID)
}
