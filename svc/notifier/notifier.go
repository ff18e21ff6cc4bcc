// Package notifier renders lifecycle emails for the billing service and
// hands them to an email.EmailSender.
package notifier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/qrmenu/pkg/email"
	"github.com/dmitrymomot/qrmenu/pkg/email/templates"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/billing"
)

// Message tags, also used as the notifications_failed_total kind label.
const (
	TagTrialActivated      = "trial_activated"
	TagTrialExpiring       = "trial_expiring"
	TagPaymentSucceeded    = "payment_succeeded"
	TagUpgradeSucceeded    = "upgrade_succeeded"
	TagCancellation        = "cancellation_confirmed"
	TagMaterializeConflict = "materialization_conflict"
)

// Notifier implements billing.Notifier over email.
type Notifier struct {
	sender      email.EmailSender
	appName     string
	frontendURL string
	opsEmail    string
	timeout     time.Duration
	printer     *message.Printer
	log         *slog.Logger
}

var _ billing.Notifier = (*Notifier)(nil)

type Option func(*Notifier)

// WithAppName sets the product name used in subjects and signatures.
func WithAppName(name string) Option {
	return func(n *Notifier) {
		if name != "" {
			n.appName = name
		}
	}
}

// WithFrontendURL sets the base URL for links in messages.
func WithFrontendURL(url string) Option {
	return func(n *Notifier) { n.frontendURL = url }
}

// WithOpsEmail sets the operator mailbox. Without it operator alerts are
// only logged.
func WithOpsEmail(addr string) Option {
	return func(n *Notifier) { n.opsEmail = addr }
}

// WithTimeout bounds each send.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// New creates a notifier. It panics if sender is nil.
func New(sender email.EmailSender, opts ...Option) *Notifier {
	if sender == nil {
		panic("notifier: email sender is required")
	}
	n := &Notifier{
		sender:  sender,
		appName: "QR Menu",
		timeout: 10 * time.Second,
		printer: message.NewPrinter(language.Vietnamese),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) TrialActivated(ctx context.Context, t billing.TrialNotice) error {
	return n.send(ctx, t.OwnerEmail, TagTrialActivated, "Your "+t.PlanName+" trial has started",
		trialActivatedEmail(n.trialData(t, "/billing")))
}

func (n *Notifier) TrialExpiring(ctx context.Context, t billing.TrialNotice) error {
	return n.send(ctx, t.OwnerEmail, TagTrialExpiring, "Your trial ends on "+formatDate(t.TrialEndsAt),
		trialExpiringEmail(n.trialData(t, "/billing/upgrade")))
}

func (n *Notifier) PaymentSucceeded(ctx context.Context, p billing.PaymentNotice) error {
	return n.send(ctx, p.OwnerEmail, TagPaymentSucceeded, "Welcome to "+n.appName,
		paymentSucceededEmail(n.paymentData(p)))
}

func (n *Notifier) UpgradeSucceeded(ctx context.Context, p billing.PaymentNotice) error {
	return n.send(ctx, p.OwnerEmail, TagUpgradeSucceeded, "You are now on "+p.PlanName,
		upgradeSucceededEmail(n.paymentData(p)))
}

func (n *Notifier) CancellationConfirmed(ctx context.Context, c billing.CancellationNotice) error {
	return n.send(ctx, c.OwnerEmail, TagCancellation, "Your subscription has been cancelled",
		cancellationEmail(cancellationData{
			Tenant:    c.TenantName,
			Plan:      c.PlanName,
			Immediate: c.Immediate,
			Effective: formatDate(c.EffectiveAt),
			URL:       n.frontendURL + "/billing",
			AppName:   n.appName,
		}))
}

// MaterializationConflict alerts operators. Without an ops mailbox it
// returns nil; the billing service already logs the conflict.
func (n *Notifier) MaterializationConflict(ctx context.Context, c billing.ConflictNotice) error {
	if n.opsEmail == "" {
		return nil
	}
	return n.send(ctx, n.opsEmail, TagMaterializeConflict, "[ops] paid registration needs resolution", conflictEmail(c))
}

func (n *Notifier) trialData(t billing.TrialNotice, path string) trialData {
	return trialData{
		Tenant:  t.TenantName,
		Plan:    t.PlanName,
		EndsAt:  formatDate(t.TrialEndsAt),
		URL:     n.frontendURL + path,
		AppName: n.appName,
	}
}

func (n *Notifier) paymentData(p billing.PaymentNotice) paymentData {
	return paymentData{
		Tenant:    p.TenantName,
		Slug:      p.TenantSlug,
		Plan:      p.PlanName,
		FromPlan:  string(p.FromPlan),
		Amount:    n.printer.Sprintf("%d %s", p.AmountTotal, p.Currency),
		OrderCode: p.OrderCode,
		PeriodEnd: formatDate(p.PeriodEnd),
		URL:       n.frontendURL + "/dashboard",
		AppName:   n.appName,
	}
}

func (n *Notifier) send(ctx context.Context, to, tag, subject string, body templ.Component) error {
	html, err := templates.Render(ctx, body)
	if err != nil {
		return errors.Join(ErrRender, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  subject,
		BodyHTML: html,
		Tag:      tag,
	}); err != nil {
		return errors.Join(ErrSend, err)
	}
	n.log.DebugContext(ctx, "notification sent", logger.Component("notifier"), logger.Event(tag))
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02/01/2006")
}
