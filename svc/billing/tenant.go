package billing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/pkg/sanitizer"
)

// dummyHash keeps VerifyOwner timing flat for unknown emails.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("qrmenu-dummy-password"), MinBcryptCost)

// Tenant returns a tenant by id.
func (s *Service) Tenant(ctx context.Context, id string) (*Tenant, error) {
	return s.store.GetTenant(ctx, id)
}

// VerifyOwner checks an owner's email and password.
func (s *Service) VerifyOwner(ctx context.Context, email, password string) (*Tenant, error) {
	t, err := s.store.GetTenantByEmail(ctx, sanitizer.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if len(t.PasswordHash) == 0 || bcrypt.CompareHashAndPassword(t.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return t, nil
}

// Suspend blocks a tenant's non-read operations.
func (s *Service) Suspend(ctx context.Context, tenantID, reason string) (*Tenant, error) {
	return s.setSuspended(ctx, tenantID, true, strings.TrimSpace(reason))
}

// Reactivate lifts a suspension.
func (s *Service) Reactivate(ctx context.Context, tenantID string) (*Tenant, error) {
	return s.setSuspended(ctx, tenantID, false, "")
}

func (s *Service) setSuspended(ctx context.Context, tenantID string, suspended bool, reason string) (*Tenant, error) {
	var out *Tenant
	err := s.WithTenantLock(ctx, tenantID, func(ctx context.Context) error {
		t, err := s.store.GetTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		now := s.now()
		t.IsSuspended = suspended
		t.SuspensionReason = reason
		t.SuspendedAt = nil
		if suspended {
			t.SuspendedAt = &now
		}
		t.UpdatedAt = now
		if err := s.store.UpdateTenant(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "tenant suspension changed",
		logger.Event("tenant_suspension_changed"),
		logger.TenantID(tenantID),
		slog.Bool("suspended", suspended),
	)
	return out, nil
}

// Access returns the gating view of a tenant. It never writes.
func (s *Service) Access(ctx context.Context, tenantID string) (*Access, error) {
	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sub, err := s.currentSubscription(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return newAccess(t, sub, s.plans.Snapshot(), s.now()), nil
}

// CurrentEntitlement returns the effective plan, features and resource
// usage of a tenant. It never writes.
func (s *Service) CurrentEntitlement(ctx context.Context, tenantID string) (*Entitlement, error) {
	a, err := s.Access(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	e := newEntitlement(a)
	for kind, count := range s.counters {
		n, err := count(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		e.Usage[kind] = newUsage(n, a.Cap)
	}
	return e, nil
}

// CountResources counts a tenant's resources of one kind.
func (s *Service) CountResources(ctx context.Context, tenantID string, kind ResourceKind) (int64, error) {
	count, ok := s.counters[kind]
	if !ok {
		return 0, ErrUnknownResource
	}
	return count(ctx, tenantID)
}

// GetPendingRegistration returns a registration for the resume flow.
func (s *Service) GetPendingRegistration(ctx context.Context, id string) (*PendingRegistration, error) {
	return s.store.GetPending(ctx, id)
}

// ListInvoices lists a tenant's payments, newest paid first.
func (s *Service) ListInvoices(ctx context.Context, tenantID string, page Page) ([]Payment, int64, error) {
	return s.store.ListPayments(ctx, PaymentFilter{Page: page, TenantID: tenantID})
}

// GetPayment returns one of the tenant's payments.
func (s *Service) GetPayment(ctx context.Context, tenantID, paymentID string) (*Payment, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.TenantID != tenantID {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

// PaymentByOrderCode looks a payment up by its gateway order code.
func (s *Service) PaymentByOrderCode(ctx context.Context, orderCode int64) (*Payment, error) {
	return s.store.GetPaymentByOrderCode(ctx, orderCode)
}
