package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
)

// Sweep job names, also used as metric labels.
const (
	JobExpirations    = "expirations"
	JobPending        = "pending_registrations"
	JobTrialReminders = "trial_reminders"
)

// SweepExpirations persists every paid or trial subscription whose period
// has ended as expired and downgrades its tenant. It returns how many
// subscriptions were expired.
func (s *Service) SweepExpirations(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.DueSubscriptions(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs []error
	)
	for _, d := range due {
		err := s.WithTenantLock(ctx, d.TenantID, func(ctx context.Context) error {
			sub, err := s.store.GetSubscription(ctx, d.ID)
			if err != nil {
				return err
			}
			if !lapsed(sub, now) {
				return nil
			}
			t, err := s.store.GetTenant(ctx, sub.TenantID)
			if err != nil {
				return err
			}
			if err := s.expireLocked(ctx, t, sub, now); err != nil {
				return err
			}
			n++
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	s.recordSweep(ctx, JobExpirations, n, len(errs))
	return n, errors.Join(errs...)
}

// SweepPendingRegistrations expires awaiting registrations past their
// deadline, releasing the slug and email they reserve.
func (s *Service) SweepPendingRegistrations(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.store.ExpiredPending(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs []error
	)
	for _, r := range expired {
		if err := s.releasePending(ctx, r.ID, PendingExpired, PaymentExpired, "registration_expired"); err != nil {
			errs = append(errs, err)
			continue
		}
		cur, err := s.store.GetPending(ctx, r.ID)
		if err != nil || cur.Status != PendingExpired {
			continue
		}
		n++
		s.cancelLinkQuietly(ctx, r.PaymentID)
	}
	s.recordSweep(ctx, JobPending, n, len(errs))
	return n, errors.Join(errs...)
}

func (s *Service) cancelLinkQuietly(ctx context.Context, paymentID string) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil || p.LinkID == "" {
		return
	}
	if err := s.gateway.CancelLink(ctx, p.LinkID, "registration expired"); err != nil {
		s.log.WarnContext(ctx, "gateway link cancel failed",
			logger.PaymentID(p.ID),
			logger.OrderCode(p.OrderCode),
			logger.Error(err),
		)
	}
}

// SweepTrialReminders sends one reminder per trial that ends within the
// configured window. The reminder is marked sent before it is delivered.
func (s *Service) SweepTrialReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.TrialsEndingBefore(ctx, now.Add(s.cfg.TrialReminderBefore), s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs []error
	)
	for _, d := range due {
		var notice *TrialNotice
		err := s.WithTenantLock(ctx, d.TenantID, func(ctx context.Context) error {
			sub, err := s.store.GetSubscription(ctx, d.ID)
			if err != nil {
				return err
			}
			if sub.Status != StatusTrial || sub.TrialReminderSentAt != nil || sub.TrialEndsAt == nil || !now.Before(*sub.TrialEndsAt) {
				return nil
			}
			t, err := s.store.GetTenant(ctx, sub.TenantID)
			if err != nil {
				return err
			}
			sub.TrialReminderSentAt = &now
			sub.UpdatedAt = now
			if err := s.store.UpdateSubscription(ctx, sub); err != nil {
				return err
			}
			plan, _ := s.plans.Snapshot().Plan(sub.PlanID)
			notice = &TrialNotice{
				TenantName:  t.Name,
				OwnerEmail:  t.OwnerEmail,
				PlanName:    plan.Name,
				TrialEndsAt: *sub.TrialEndsAt,
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if notice != nil {
			n++
			s.notify(ctx, "trial_expiring", func(ctx context.Context) error {
				return s.notifier.TrialExpiring(ctx, *notice)
			})
		}
	}
	s.recordSweep(ctx, JobTrialReminders, n, len(errs))
	return n, errors.Join(errs...)
}

func (s *Service) recordSweep(ctx context.Context, job string, handled, failed int) {
	s.metrics.sweeps.WithLabelValues(job).Add(float64(handled))
	if handled == 0 && failed == 0 {
		return
	}
	s.log.InfoContext(ctx, "sweep finished",
		logger.Job(job),
		logger.Event("sweep_finished"),
		slog.Int("handled", handled),
		slog.Int("failed", failed),
	)
}
