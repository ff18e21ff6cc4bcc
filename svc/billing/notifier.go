package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// TrialNotice describes a started or ending trial.
type TrialNotice struct {
	TenantName  string
	OwnerEmail  string
	PlanName    string
	TrialEndsAt time.Time
}

// PaymentNotice describes a settled payment.
type PaymentNotice struct {
	TenantName    string
	TenantSlug    string
	OwnerEmail    string
	PlanName      string
	FromPlan      catalogue.PlanID
	AmountTotal   int64
	Currency      string
	OrderCode     int64
	TransactionID string
	PeriodEnd     time.Time
}

// CancellationNotice describes an accepted cancellation.
type CancellationNotice struct {
	TenantName  string
	OwnerEmail  string
	PlanName    string
	Immediate   bool
	EffectiveAt time.Time
}

// ConflictNotice is the operator alert for a paid registration that could
// not be materialized.
type ConflictNotice struct {
	PendingID string
	PaymentID string
	OrderCode int64
	Slug      string
	Email     string
	Reason    string
}

// Notifier delivers lifecycle emails. Errors are reported to the caller
// but never undo the state change that triggered them.
type Notifier interface {
	TrialActivated(ctx context.Context, n TrialNotice) error
	TrialExpiring(ctx context.Context, n TrialNotice) error
	PaymentSucceeded(ctx context.Context, n PaymentNotice) error
	UpgradeSucceeded(ctx context.Context, n PaymentNotice) error
	CancellationConfirmed(ctx context.Context, n CancellationNotice) error
	MaterializationConflict(ctx context.Context, n ConflictNotice) error
}

type nopNotifier struct{}

func (nopNotifier) TrialActivated(context.Context, TrialNotice) error               { return nil }
func (nopNotifier) TrialExpiring(context.Context, TrialNotice) error                { return nil }
func (nopNotifier) PaymentSucceeded(context.Context, PaymentNotice) error           { return nil }
func (nopNotifier) UpgradeSucceeded(context.Context, PaymentNotice) error           { return nil }
func (nopNotifier) CancellationConfirmed(context.Context, CancellationNotice) error { return nil }
func (nopNotifier) MaterializationConflict(context.Context, ConflictNotice) error   { return nil }
