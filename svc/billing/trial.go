package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// ActivateTrial starts the one trial a tenant is granted on the trial
// plan. A live paid subscription yields ErrAlreadySubscribed; an implicit
// free subscription is converted in place.
func (s *Service) ActivateTrial(ctx context.Context, tenantID string) (*Subscription, error) {
	var (
		sub    *Subscription
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
			cur = nil
		}
		if cur != nil && cur.PlanID != catalogue.PlanFree {
			return ErrAlreadySubscribed
		}
		if t.TrialUsed {
			return ErrTrialAlreadyUsed
		}
		p, ok := s.plans.Snapshot().Plan(s.cfg.TrialPlanID)
		if !ok || !p.IsActive || p.IsFree() {
			return ErrInvalidPlan
		}
		plan = p

		ends := now.AddDate(0, 0, s.cfg.TrialDays)
		if cur == nil {
			cur = s.newSubscription(t.ID, plan, StatusTrial, now, ends)
			cur.TrialEndsAt = &ends
			if err := s.store.CreateSubscription(ctx, cur); err != nil {
				return err
			}
		} else {
			cur.PlanID = plan.ID
			cur.Status = StatusTrial
			cur.TrialEndsAt = &ends
			cur.PeriodStart = now
			cur.PeriodEnd = ends
			cur.CancelAtPeriodEnd = false
			cur.MaxResourceUnits = clonePtr(plan.MaxResourceUnits)
			cur.UpdatedAt = now
			if err := s.store.UpdateSubscription(ctx, cur); err != nil {
				return err
			}
		}

		t.TrialUsed = true
		applyFacet(t, cur)
		t.UpdatedAt = now
		if err := s.store.UpdateTenant(ctx, t); err != nil {
			return err
		}
		sub, tenant = cur, t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "trial activated",
		logger.Event("trial_activated"),
		logger.TenantID(tenant.ID),
		logger.SubscriptionID(sub.ID),
		logger.PlanID(string(sub.PlanID)),
	)
	s.notify(ctx, "trial_activated", func(ctx context.Context) error {
		return s.notifier.TrialActivated(ctx, TrialNotice{
			TenantName:  tenant.Name,
			OwnerEmail:  tenant.OwnerEmail,
			PlanName:    plan.Name,
			TrialEndsAt: timeOf(sub.TrialEndsAt),
		})
	})
	return sub, nil
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
