package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/qrmenu/pkg/locker"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/pkg/sanitizer"
	"github.com/dmitrymomot/qrmenu/pkg/slug"
	"github.com/dmitrymomot/qrmenu/pkg/validator"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

// maxDescriptionLen is the gateway limit on a checkout description.
const maxDescriptionLen = 25

// maxPasswordLen is the bcrypt input limit.
const maxPasswordLen = 72

// Checkout is a created gateway checkout.
type Checkout struct {
	PaymentID   string    `json:"payment_id"`
	PendingID   string    `json:"pending_id,omitempty"`
	OrderCode   int64     `json:"gateway_order_code"`
	CheckoutURL string    `json:"checkout_url"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

// Registration is the desired identity of a new tenant.
type Registration struct {
	TenantName string
	Slug       string
	Email      string
	Password   string
	OwnerName  string
	OwnerPhone string
	PlanID     catalogue.PlanID
}

// registration is a validated Registration with its password hashed.
type registration struct {
	Registration
	hash []byte
}

// CreateCheckoutForUpgrade allocates an upgrade or renewal payment for
// the tenant's subscription and obtains a gateway link. A tenant without
// any live subscription gets an implicit free one first.
func (s *Service) CreateCheckoutForUpgrade(ctx context.Context, tenantID string, target catalogue.PlanID) (*Checkout, error) {
	plan, err := s.purchasable(target)
	if err != nil {
		return nil, err
	}

	var (
		payment *Payment
		tenant  *Tenant
	)
	err = s.WithTenantLock(ctx, tenantID, func(ctx context.Context) error {
		t, err := s.store.GetTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		cur, err := s.currentSubscription(ctx, tenantID)
		if err != nil {
			return err
		}
		now := s.now()
		if lapsed(cur, now) {
			if err := s.expireLocked(ctx, t, cur, now); err != nil {
				return err
			}
			cur = nil
		}
		if cur == nil {
			free := s.plans.Snapshot().Free()
			cur = s.newSubscription(t.ID, free, StatusActive, now, now.Add(s.cfg.BillingPeriod))
			if err := s.store.CreateSubscription(ctx, cur); err != nil {
				return err
			}
			applyFacet(t, cur)
			t.UpdatedAt = now
			if err := s.store.UpdateTenant(ctx, t); err != nil {
				return err
			}
		}
		if cur.PlanID == plan.ID && cur.Status == StatusActive && !cur.CancelAtPeriodEnd &&
			cur.PeriodEnd.Sub(now) > s.cfg.RenewalWindow {
			return ErrSamePlan
		}

		p := &Payment{
			ID:             uuid.NewString(),
			SubscriptionID: cur.ID,
			TenantID:       t.ID,
			AmountBase:     plan.PriceBase,
			AmountTax:      plan.PriceTax,
			AmountTotal:    plan.PriceTotal,
			Currency:       plan.Currency,
			Status:         PaymentPending,
			Metadata: PaymentMetadata{
				Type:     PaymentTypeUpgrade,
				FromPlan: cur.PlanID,
				ToPlan:   plan.ID,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.createPayment(ctx, p); err != nil {
			return err
		}
		payment, tenant = p, t
		return nil
	})
	if err != nil {
		return nil, err
	}

	link, err := s.gateway.CreateLink(ctx, gateway.LinkRequest{
		OrderCode:   payment.OrderCode,
		Amount:      payment.AmountTotal,
		Description: describe("QRM", tenant.Slug),
		Buyer:       gateway.Buyer{Name: tenant.OwnerName, Email: tenant.OwnerEmail, Phone: tenant.OwnerPhone},
		ReturnURL:   withQuery(s.cfg.ReturnURL, "payment_id", payment.ID),
		CancelURL:   withQuery(s.cfg.CancelURL, "payment_id", payment.ID),
		Items:       []gateway.Item{{Name: plan.Name, Quantity: 1, Price: payment.AmountTotal}},
		ExpiresIn:   s.cfg.CheckoutLinkTTL,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "gateway link creation failed",
			logger.Event("gateway_link_failed"),
			logger.TenantID(tenantID),
			logger.PaymentID(payment.ID),
			logger.OrderCode(payment.OrderCode),
			logger.Error(err),
		)
		return nil, errors.Join(ErrGatewayUnavailable, err)
	}
	if err := s.store.SetPaymentLink(ctx, payment.ID, LinkInfo(link)); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "upgrade checkout created",
		logger.Event("checkout_created"),
		logger.TenantID(tenantID),
		logger.PaymentID(payment.ID),
		logger.OrderCode(payment.OrderCode),
		logger.PlanID(string(plan.ID)),
	)
	return &Checkout{
		PaymentID:   payment.ID,
		OrderCode:   payment.OrderCode,
		CheckoutURL: link.CheckoutURL,
	}, nil
}

// CreateCheckoutForRegistration reserves the desired identity in a
// PendingRegistration, allocates its payment and obtains a gateway link.
// The return URL carries the pending id so the signup can be resumed.
func (s *Service) CreateCheckoutForRegistration(ctx context.Context, in Registration) (*Checkout, error) {
	plan, err := s.purchasable(in.PlanID)
	if err != nil {
		return nil, err
	}
	reg, err := s.prepareRegistration(in)
	if err != nil {
		return nil, err
	}

	var (
		pending *PendingRegistration
		payment *Payment
	)
	err = s.withIdentityLocks(ctx, reg.Slug, reg.Email, func(ctx context.Context) error {
		now := s.now()
		if err := s.identityFree(ctx, reg.Slug, reg.Email, now); err != nil {
			return err
		}
		pendingID := uuid.NewString()
		p := &Payment{
			ID:                    uuid.NewString(),
			PendingRegistrationID: pendingID,
			AmountBase:            plan.PriceBase,
			AmountTax:             plan.PriceTax,
			AmountTotal:           plan.PriceTotal,
			Currency:              plan.Currency,
			Status:                PaymentPending,
			Metadata: PaymentMetadata{
				Type:   PaymentTypeNewRegistration,
				ToPlan: plan.ID,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.createPayment(ctx, p); err != nil {
			return err
		}
		r := &PendingRegistration{
			ID:           pendingID,
			Email:        reg.Email,
			PasswordHash: reg.hash,
			TenantName:   reg.TenantName,
			Slug:         reg.Slug,
			OwnerName:    reg.OwnerName,
			OwnerPhone:   reg.OwnerPhone,
			PlanID:       plan.ID,
			PaymentID:    p.ID,
			OrderCode:    p.OrderCode,
			Status:       PendingAwaitingPayment,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.cfg.PendingTTL),
			UpdatedAt:    now,
		}
		if err := s.store.CreatePending(ctx, r); err != nil {
			if _, cerr := s.store.ClosePayment(ctx, p.ID, PaymentFailed, "registration_not_saved"); cerr != nil {
				err = errors.Join(err, cerr)
			}
			return err
		}
		pending, payment = r, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	link, err := s.gateway.CreateLink(ctx, gateway.LinkRequest{
		OrderCode:   payment.OrderCode,
		Amount:      payment.AmountTotal,
		Description: describe("QRM", pending.Slug),
		Buyer:       gateway.Buyer{Name: pending.OwnerName, Email: pending.Email, Phone: pending.OwnerPhone},
		ReturnURL:   withQuery(s.cfg.ReturnURL, "pending_id", pending.ID),
		CancelURL:   withQuery(s.cfg.CancelURL, "pending_id", pending.ID),
		Items:       []gateway.Item{{Name: plan.Name, Quantity: 1, Price: payment.AmountTotal}},
		ExpiresIn:   min(s.cfg.CheckoutLinkTTL, s.cfg.PendingTTL),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "gateway link creation failed",
			logger.Event("gateway_link_failed"),
			logger.PendingID(pending.ID),
			logger.PaymentID(payment.ID),
			logger.OrderCode(payment.OrderCode),
			logger.Error(err),
		)
		// The reservation stays awaiting_payment; the sweeper frees it at expires_at.
		return nil, errors.Join(ErrGatewayUnavailable, err)
	}
	if err := s.store.SetPaymentLink(ctx, payment.ID, LinkInfo(link)); err != nil {
		return nil, err
	}
	err = locker.WithLock(ctx, s.locker, pendingKey(pending.ID), func(ctx context.Context) error {
		r, err := s.store.GetPending(ctx, pending.ID)
		if err != nil {
			return err
		}
		r.CheckoutURL = link.CheckoutURL
		r.UpdatedAt = s.now()
		return s.store.UpdatePending(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "registration checkout created",
		logger.Event("checkout_created"),
		logger.PendingID(pending.ID),
		logger.PaymentID(payment.ID),
		logger.OrderCode(payment.OrderCode),
		logger.PlanID(string(plan.ID)),
		slog.String("email", sanitizer.MaskEmail(pending.Email)),
	)
	return &Checkout{
		PaymentID:   payment.ID,
		PendingID:   pending.ID,
		OrderCode:   payment.OrderCode,
		CheckoutURL: link.CheckoutURL,
		ExpiresAt:   pending.ExpiresAt,
	}, nil
}

// RegisterFree creates a tenant on the free plan without a subscription.
func (s *Service) RegisterFree(ctx context.Context, in Registration) (*Tenant, error) {
	reg, err := s.prepareRegistration(in)
	if err != nil {
		return nil, err
	}
	var tenant *Tenant
	err = s.withIdentityLocks(ctx, reg.Slug, reg.Email, func(ctx context.Context) error {
		now := s.now()
		if err := s.identityFree(ctx, reg.Slug, reg.Email, now); err != nil {
			return err
		}
		t := &Tenant{
			ID:           uuid.NewString(),
			Name:         reg.TenantName,
			Slug:         reg.Slug,
			OwnerEmail:   reg.Email,
			OwnerName:    reg.OwnerName,
			OwnerPhone:   reg.OwnerPhone,
			PasswordHash: reg.hash,
			Facet:        freeFacet(s.plans.Snapshot().Free()),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.CreateTenant(ctx, t); err != nil {
			return err
		}
		tenant = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "tenant registered",
		logger.Event("tenant_registered"),
		logger.TenantID(tenant.ID),
		logger.PlanID(string(catalogue.PlanFree)),
	)
	return tenant, nil
}

// purchasable returns the active paid plan id or ErrInvalidPlan.
func (s *Service) purchasable(id catalogue.PlanID) (catalogue.Plan, error) {
	plan, ok := s.plans.Snapshot().Plan(id)
	if !ok || !plan.IsActive || plan.IsFree() || plan.PriceTotal <= 0 {
		return catalogue.Plan{}, ErrInvalidPlan
	}
	return plan, nil
}

// prepareRegistration normalizes and validates the desired identity and
// hashes the password.
func (s *Service) prepareRegistration(in Registration) (*registration, error) {
	in.TenantName = strings.TrimSpace(in.TenantName)
	in.OwnerName = strings.TrimSpace(in.OwnerName)
	in.OwnerPhone = strings.TrimSpace(in.OwnerPhone)
	in.Email = sanitizer.NormalizeEmail(in.Email)

	if err := validator.Apply(validator.Required("tenant_name", in.TenantName)); err != nil {
		return nil, errors.Join(ErrInvalidTenantName, err)
	}
	if err := validator.Apply(validator.ValidEmail("email", in.Email)); err != nil {
		return nil, errors.Join(ErrInvalidEmail, err)
	}
	rawSlug := in.Slug
	if strings.TrimSpace(rawSlug) == "" {
		rawSlug = in.TenantName
	}
	normalized, err := slug.Make(rawSlug)
	if err != nil {
		return nil, errors.Join(ErrInvalidSlug, err)
	}
	in.Slug = normalized
	if err := validator.Apply(validator.LengthBetween("password", in.Password, s.cfg.MinPasswordLength, maxPasswordLen)); err != nil {
		return nil, errors.Join(ErrWeakPassword, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		// bcrypt rejects passwords over 72 bytes.
		return nil, errors.Join(ErrWeakPassword, err)
	}
	in.Password = ""
	return &registration{Registration: in, hash: hash}, nil
}

// identityFree checks slug and email against live tenants and reserving
// registrations. The caller holds the identity locks.
func (s *Service) identityFree(ctx context.Context, slug, email string, now time.Time) error {
	slugTaken, emailTaken, err := s.store.TenantTaken(ctx, slug, email)
	if err != nil {
		return err
	}
	if !slugTaken || !emailTaken {
		ps, pe, err := s.store.PendingReserved(ctx, slug, email, now)
		if err != nil {
			return err
		}
		slugTaken, emailTaken = slugTaken || ps, emailTaken || pe
	}
	switch {
	case slugTaken:
		return ErrSlugTaken
	case emailTaken:
		return ErrEmailTaken
	}
	return nil
}

// describe builds a checkout description within the gateway limit.
func describe(prefix, ref string) string {
	d := fmt.Sprintf("%s %s", prefix, strings.ToUpper(strings.ReplaceAll(ref, "-", "")))
	if len(d) > maxDescriptionLen {
		d = d[:maxDescriptionLen]
	}
	return d
}
