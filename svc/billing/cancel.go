package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// Cancellation is the outcome of Cancel.
type Cancellation struct {
	Subscription *Subscription `json:"subscription"`
	Immediate    bool          `json:"immediate"`
	CancelAt     time.Time     `json:"cancel_at"`
}

// Cancel ends the tenant's paid or trial subscription, either now or at
// the end of the current period.
func (s *Service) Cancel(ctx context.Context, tenantID string, immediate bool) (*Cancellation, error) {
	var (
		out    Cancellation
		tenant *Tenant
		plan   catalogue.Plan
	)
	err := s.WithTenantLock(ctx, tenantID, func(ctx context.Context) error {
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
			return ErrNoSubscription
		}
		if cur == nil || cur.PlanID == catalogue.PlanFree {
			return ErrNoSubscription
		}
		plan, _ = s.plans.Snapshot().Plan(cur.PlanID)

		event := eventScheduleCancel
		if immediate {
			event = eventCancelNow
		}
		next, err := lifecycle.Next(cur.Status, event)
		if err != nil {
			return err
		}
		cur.Status = next
		cur.UpdatedAt = now
		if immediate {
			cur.CancelledAt = &now
			cur.CancelAtPeriodEnd = false
			out.CancelAt = now
		} else {
			cur.CancelAtPeriodEnd = true
			out.CancelAt = cur.PeriodEnd
		}
		if err := s.store.UpdateSubscription(ctx, cur); err != nil {
			return err
		}

		if immediate {
			downgradeToFree(t, s.plans.Snapshot().Free(), EntitlementCancelled, cur.ID)
		} else {
			applyFacet(t, cur)
		}
		t.UpdatedAt = now
		if err := s.store.UpdateTenant(ctx, t); err != nil {
			return err
		}
		out.Subscription, out.Immediate, tenant = cur, immediate, t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription cancelled",
		logger.Event("subscription_cancelled"),
		logger.TenantID(tenantID),
		logger.SubscriptionID(out.Subscription.ID),
		slog.Bool("immediate", immediate),
	)
	s.notify(ctx, "cancellation_confirmed", func(ctx context.Context) error {
		return s.notifier.CancellationConfirmed(ctx, CancellationNotice{
			TenantName:  tenant.Name,
			OwnerEmail:  tenant.OwnerEmail,
			PlanName:    plan.Name,
			Immediate:   immediate,
			EffectiveAt: out.CancelAt,
		})
	})
	return &out, nil
}
