package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/qrmenu/pkg/locker"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/pkg/sanitizer"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

// Settlement is the outcome of SettlePayment.
type Settlement struct {
	Payment      *Payment
	Tenant       *Tenant
	Subscription *Subscription
	// Duplicate is set when the payment was already paid and nothing changed.
	Duplicate bool
}

// SettlePayment records a captured payment and applies what it paid for.
// The pending to paid flip happens at most once; replays return a
// Duplicate settlement. A paid registration whose materialization was
// interrupted is resumed on replay.
func (s *Service) SettlePayment(ctx context.Context, paymentID string, fact SettlementFact) (*Settlement, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == PaymentRefunded {
		return nil, ErrPaymentRefunded
	}
	if fact.Amount > 0 && fact.Amount < p.AmountTotal {
		s.log.WarnContext(ctx, "paid amount below payment total",
			logger.Event("amount_mismatch"),
			logger.PaymentID(p.ID),
			logger.OrderCode(p.OrderCode),
			slog.Int64("amount", fact.Amount),
			slog.Int64("amount_total", p.AmountTotal),
		)
		return nil, ErrAmountMismatch
	}

	var (
		out Settlement
		box outbox
	)
	if p.Metadata.Type == PaymentTypeNewRegistration {
		err = locker.WithLock(ctx, s.locker, pendingKey(p.PendingRegistrationID), func(ctx context.Context) error {
			return s.settleRegistration(ctx, p, fact, &out, &box)
		})
	} else {
		err = s.WithTenantLock(ctx, p.TenantID, func(ctx context.Context) error {
			return s.settleUpgrade(ctx, p, fact, &out, &box)
		})
	}
	box.flush(ctx)
	if err != nil {
		return nil, err
	}
	if !out.Duplicate {
		s.log.InfoContext(ctx, "payment settled",
			logger.Event("payment_settled"),
			logger.PaymentID(p.ID),
			logger.OrderCode(p.OrderCode),
			slog.String("type", string(p.Metadata.Type)),
		)
	}
	return &out, nil
}

// markPaid performs the single-assignment flip. changed is false when the
// payment was already paid.
func (s *Service) markPaid(ctx context.Context, p *Payment, fact SettlementFact, now time.Time) (*Payment, bool, error) {
	paid, changed, err := s.store.MarkPaymentPaid(ctx, p.ID, fact.TransactionID, now, fact.PaidAt)
	if err != nil {
		return nil, false, err
	}
	if !changed && paid.Status != PaymentPaid {
		return nil, false, ErrPaymentNotPending
	}
	if changed {
		s.metrics.paymentsSettled.WithLabelValues(string(paid.Metadata.Type)).Inc()
	}
	return paid, changed, nil
}

func (s *Service) settleUpgrade(ctx context.Context, p *Payment, fact SettlementFact, out *Settlement, box *outbox) error {
	now := s.now()
	paid, changed, err := s.markPaid(ctx, p, fact, now)
	if err != nil {
		return err
	}
	out.Payment = paid
	if !changed {
		out.Duplicate = true
		return nil
	}
	if err := s.applyUpgrade(ctx, paid, now, out, box); err != nil {
		s.flagResolution(ctx, paid, fmt.Sprintf("upgrade not applied: %v", err))
		return err
	}
	return nil
}

// applyUpgrade advances the tenant's live subscription, or opens a new
// one, to the paid plan. The caller holds the tenant lock.
func (s *Service) applyUpgrade(ctx context.Context, p *Payment, now time.Time, out *Settlement, box *outbox) error {
	t, err := s.store.GetTenant(ctx, p.TenantID)
	if err != nil {
		return err
	}
	plan, ok := s.plans.Snapshot().Plan(p.Metadata.ToPlan)
	if !ok {
		return ErrInvalidPlan
	}
	cur, err := s.currentSubscription(ctx, t.ID)
	if err != nil {
		return err
	}

	from := p.Metadata.FromPlan
	upgraded := true
	end := now.Add(s.cfg.BillingPeriod)
	if cur == nil {
		cur = s.newSubscription(t.ID, plan, StatusActive, now, end)
		if err := s.store.CreateSubscription(ctx, cur); err != nil {
			return err
		}
	} else {
		next, err := lifecycle.Next(cur.Status, eventPay)
		if err != nil {
			return err
		}
		from = cur.PlanID
		upgraded = cur.Status == StatusTrial || cur.PlanID != plan.ID
		if cur.PlanID == plan.ID && !lapsed(cur, now) && cur.PeriodEnd.After(end) {
			end = cur.PeriodEnd
		}
		cur.Status = next
		cur.PlanID = plan.ID
		cur.TrialEndsAt = nil
		cur.CancelAtPeriodEnd = false
		cur.CancelledAt = nil
		cur.PeriodStart = now
		cur.PeriodEnd = end
		cur.MaxResourceUnits = clonePtr(plan.MaxResourceUnits)
		cur.UpdatedAt = now
		if err := s.store.UpdateSubscription(ctx, cur); err != nil {
			return err
		}
	}

	applyFacet(t, cur)
	t.UpdatedAt = now
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return err
	}
	if p.SubscriptionID != cur.ID {
		if err := s.store.LinkPayment(ctx, p.ID, t.ID, cur.ID); err != nil {
			return err
		}
		p.SubscriptionID = cur.ID
	}
	out.Tenant, out.Subscription = t, cur

	notice := s.paymentNotice(t, plan, p, cur)
	notice.FromPlan = from
	if upgraded {
		box.add(func(ctx context.Context) {
			s.notify(ctx, "upgrade_succeeded", func(ctx context.Context) error {
				return s.notifier.UpgradeSucceeded(ctx, notice)
			})
		})
	} else {
		box.add(func(ctx context.Context) {
			s.notify(ctx, "payment_succeeded", func(ctx context.Context) error {
				return s.notifier.PaymentSucceeded(ctx, notice)
			})
		})
	}
	return nil
}

// settleRegistration flips the payment and materializes its pending
// registration. The caller holds the pending lock.
func (s *Service) settleRegistration(ctx context.Context, p *Payment, fact SettlementFact, out *Settlement, box *outbox) error {
	now := s.now()
	paid, changed, err := s.markPaid(ctx, p, fact, now)
	if err != nil {
		return err
	}
	out.Payment = paid
	r, err := s.store.GetPending(ctx, paid.PendingRegistrationID)
	if err != nil {
		if changed {
			s.flagResolution(ctx, paid, "pending registration missing")
		}
		return err
	}
	if !changed && r.Status != PendingPaymentSettled {
		out.Duplicate = true
		return nil
	}
	if r.Status == PendingCancelled || r.Status == PendingMaterialized {
		// A late payment for a registration that was already closed.
		s.flagResolution(ctx, paid, "payment for closed registration "+string(r.Status))
		out.Duplicate = r.Status == PendingMaterialized
		return nil
	}
	return s.materialize(ctx, paid, r, now, out, box)
}

// materialize promotes a settled registration into a tenant with an
// active subscription. Each step tolerates a previous partial run.
func (s *Service) materialize(ctx context.Context, p *Payment, r *PendingRegistration, now time.Time, out *Settlement, box *outbox) error {
	r.Status = PendingPaymentSettled
	if r.TenantID == "" {
		r.TenantID = uuid.NewString()
	}
	r.UpdatedAt = now
	if err := s.store.UpdatePending(ctx, r); err != nil {
		return err
	}

	return s.withIdentityLocks(ctx, r.Slug, r.Email, func(ctx context.Context) error {
		return s.WithTenantLock(ctx, r.TenantID, func(ctx context.Context) error {
			snap := s.plans.Snapshot()
			plan, ok := snap.Plan(r.PlanID)
			if !ok {
				s.flagResolution(ctx, p, "registration plan missing from catalogue")
				return ErrInvalidPlan
			}

			t, err := s.store.GetTenant(ctx, r.TenantID)
			switch {
			case err == nil:
			case errors.Is(err, ErrTenantNotFound):
				slugTaken, emailTaken, err := s.store.TenantTaken(ctx, r.Slug, r.Email)
				if err != nil {
					return err
				}
				if slugTaken || emailTaken {
					return s.conflict(ctx, p, r, conflictReason(slugTaken), now, box)
				}
				t = &Tenant{
					ID:           r.TenantID,
					Name:         r.TenantName,
					Slug:         r.Slug,
					OwnerEmail:   r.Email,
					OwnerName:    r.OwnerName,
					OwnerPhone:   r.OwnerPhone,
					PasswordHash: r.PasswordHash,
					Facet:        freeFacet(snap.Free()),
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				if err := s.store.CreateTenant(ctx, t); err != nil {
					if errors.Is(err, ErrSlugTaken) || errors.Is(err, ErrEmailTaken) {
						return s.conflict(ctx, p, r, conflictReason(errors.Is(err, ErrSlugTaken)), now, box)
					}
					return err
				}
			default:
				return err
			}

			sub, err := s.currentSubscription(ctx, t.ID)
			if err != nil {
				return err
			}
			if sub == nil {
				sub = s.newSubscription(t.ID, plan, StatusActive, now, now.Add(s.cfg.BillingPeriod))
				if err := s.store.CreateSubscription(ctx, sub); err != nil {
					return err
				}
			}
			applyFacet(t, sub)
			t.UpdatedAt = now
			if err := s.store.UpdateTenant(ctx, t); err != nil {
				return err
			}
			if err := s.store.LinkPayment(ctx, p.ID, t.ID, sub.ID); err != nil {
				return err
			}
			p.TenantID, p.SubscriptionID = t.ID, sub.ID

			r.Status = PendingMaterialized
			r.MaterializedAt = &now
			r.PasswordHash = nil
			r.UpdatedAt = now
			if err := s.store.UpdatePending(ctx, r); err != nil {
				return err
			}
			out.Tenant, out.Subscription = t, sub

			s.log.InfoContext(ctx, "registration materialized",
				logger.Event("registration_materialized"),
				logger.PendingID(r.ID),
				logger.TenantID(t.ID),
				logger.SubscriptionID(sub.ID),
			)
			notice := s.paymentNotice(t, plan, p, sub)
			box.add(func(ctx context.Context) {
				s.notify(ctx, "payment_succeeded", func(ctx context.Context) error {
					return s.notifier.PaymentSucceeded(ctx, notice)
				})
			})
			return nil
		})
	})
}

func conflictReason(slugTaken bool) string {
	if slugTaken {
		return "slug taken by a live tenant"
	}
	return "email taken by a live tenant"
}

// conflict closes a registration that lost its identity and flags the
// captured payment for manual resolution.
func (s *Service) conflict(ctx context.Context, p *Payment, r *PendingRegistration, reason string, now time.Time, box *outbox) error {
	r.Status = PendingCancelled
	r.PasswordHash = nil
	r.UpdatedAt = now
	if err := s.store.UpdatePending(ctx, r); err != nil {
		return err
	}
	s.flagResolution(ctx, p, reason)
	s.metrics.materializationConflicts.Inc()
	s.log.ErrorContext(ctx, "registration materialization conflict",
		logger.Event("materialization_conflict"),
		logger.PendingID(r.ID),
		logger.PaymentID(p.ID),
		logger.OrderCode(p.OrderCode),
		slog.String("slug", r.Slug),
		slog.String("email", sanitizer.MaskEmail(r.Email)),
		slog.String("reason", reason),
	)
	notice := ConflictNotice{
		PendingID: r.ID,
		PaymentID: p.ID,
		OrderCode: p.OrderCode,
		Slug:      r.Slug,
		Email:     r.Email,
		Reason:    reason,
	}
	box.add(func(ctx context.Context) {
		s.notify(ctx, "materialization_conflict", func(ctx context.Context) error {
			return s.notifier.MaterializationConflict(ctx, notice)
		})
	})
	return ErrMaterializationConflict
}

func (s *Service) flagResolution(ctx context.Context, p *Payment, reason string) {
	if err := s.store.FlagPaymentResolution(ctx, p.ID, reason); err != nil {
		s.log.ErrorContext(ctx, "flag payment for resolution failed",
			logger.PaymentID(p.ID),
			logger.Error(err),
		)
		return
	}
	s.log.WarnContext(ctx, "payment requires manual resolution",
		logger.Event("payment_resolution_required"),
		logger.PaymentID(p.ID),
		logger.OrderCode(p.OrderCode),
		slog.String("reason", reason),
	)
}

func (s *Service) paymentNotice(t *Tenant, plan catalogue.Plan, p *Payment, sub *Subscription) PaymentNotice {
	return PaymentNotice{
		TenantName:    t.Name,
		TenantSlug:    t.Slug,
		OwnerEmail:    t.OwnerEmail,
		PlanName:      plan.Name,
		FromPlan:      p.Metadata.FromPlan,
		AmountTotal:   p.AmountTotal,
		Currency:      p.Currency,
		OrderCode:     p.OrderCode,
		TransactionID: p.TransactionID,
		PeriodEnd:     sub.PeriodEnd,
	}
}

// ConfirmPayment polls the gateway for a pending payment and applies its
// outcome. It races the webhook safely.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID string) (*Payment, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != PaymentPending || p.LinkID == "" {
		return p, nil
	}
	st, err := s.gateway.GetStatus(ctx, p.LinkID)
	if err != nil {
		return nil, errors.Join(ErrGatewayUnavailable, err)
	}

	switch st.Status {
	case gateway.StatusPaid:
		_, err := s.SettlePayment(ctx, p.ID, SettlementFact{
			TransactionID: st.TransactionID,
			Amount:        st.Amount,
			PaidAt:        st.PaidAt,
		})
		if err != nil && !errors.Is(err, ErrMaterializationConflict) {
			return nil, err
		}
	case gateway.StatusCancelled, gateway.StatusExpired:
		status, reason := PaymentFailed, "cancelled_at_gateway"
		if st.Status == gateway.StatusExpired {
			status, reason = PaymentExpired, "expired_at_gateway"
		}
		if err := s.closePayment(ctx, p, status, reason); err != nil {
			return nil, err
		}
	}
	return s.store.GetPayment(ctx, p.ID)
}

// CancelCheckout abandons a tenant's pending checkout. The gateway link is
// cancelled best effort.
func (s *Service) CancelCheckout(ctx context.Context, tenantID, paymentID string) (*Payment, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.TenantID != tenantID {
		return nil, ErrPaymentNotFound
	}
	if p.Status != PaymentPending {
		return nil, ErrPaymentNotPending
	}
	if p.LinkID != "" {
		if err := s.gateway.CancelLink(ctx, p.LinkID, "cancelled by owner"); err != nil {
			s.log.WarnContext(ctx, "gateway link cancel failed",
				logger.PaymentID(p.ID),
				logger.OrderCode(p.OrderCode),
				logger.Error(err),
			)
		}
	}
	changed, err := s.store.ClosePayment(ctx, p.ID, PaymentFailed, "cancelled_by_owner")
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrPaymentNotPending
	}
	return s.store.GetPayment(ctx, p.ID)
}

// closePayment ends a pending payment; a registration payment also
// releases its reservation.
func (s *Service) closePayment(ctx context.Context, p *Payment, status PaymentStatus, reason string) error {
	if p.PendingRegistrationID != "" && p.Metadata.Type == PaymentTypeNewRegistration {
		pendingStatus := PendingCancelled
		if status == PaymentExpired {
			pendingStatus = PendingExpired
		}
		return s.releasePending(ctx, p.PendingRegistrationID, pendingStatus, status, reason)
	}
	_, err := s.store.ClosePayment(ctx, p.ID, status, reason)
	return err
}

// releasePending closes an awaiting registration together with its
// payment. A payment that was paid meanwhile keeps the registration. An
// expired registration keeps its password hash so a late payment can
// still be materialized.
func (s *Service) releasePending(ctx context.Context, pendingID string, status PendingStatus, paymentStatus PaymentStatus, reason string) error {
	return locker.WithLock(ctx, s.locker, pendingKey(pendingID), func(ctx context.Context) error {
		r, err := s.store.GetPending(ctx, pendingID)
		if err != nil {
			return err
		}
		if r.Status != PendingAwaitingPayment {
			return nil
		}
		changed, err := s.store.ClosePayment(ctx, r.PaymentID, paymentStatus, reason)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		r.Status = status
		if status == PendingCancelled {
			r.PasswordHash = nil
		}
		r.UpdatedAt = s.now()
		return s.store.UpdatePending(ctx, r)
	})
}
