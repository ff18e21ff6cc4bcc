// Package webhooks is the gateway callback endpoint. Every delivery that
// passes signature verification is acknowledged with code "00", even when
// processing fails, so the gateway never retries into a storm.
package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

const maxBody = 64 << 10

// Settler is the part of the billing service the ingress drives.
type Settler interface {
	VerifyWebhook(payload []byte, signature string) bool
	Mode() gateway.Mode
	Metrics() *billing.Metrics
	PaymentByOrderCode(ctx context.Context, orderCode int64) (*billing.Payment, error)
	SettlePayment(ctx context.Context, paymentID string, fact billing.SettlementFact) (*billing.Settlement, error)
}

// OrderPayments settles in-store order payments that share the gateway
// account. found is false when no order carries the code.
type OrderPayments interface {
	SettleOrderPayment(ctx context.Context, orderCode int64, fact billing.SettlementFact) (found bool, err error)
}

type Ingress struct {
	billing         Settler
	orders          OrderPayments
	signatureHeader string
	timeout         time.Duration
	log             *slog.Logger
}

type Option func(*Ingress)

// WithOrderPayments sets the fallback for order codes no subscription
// payment carries.
func WithOrderPayments(o OrderPayments) Option {
	return func(in *Ingress) { in.orders = o }
}

// WithSignatureHeader overrides the header carrying the body signature.
func WithSignatureHeader(name string) Option {
	return func(in *Ingress) {
		if name != "" {
			in.signatureHeader = name
		}
	}
}

// WithTimeout bounds settlement of one delivery.
func WithTimeout(d time.Duration) Option {
	return func(in *Ingress) {
		if d > 0 {
			in.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(in *Ingress) {
		if l != nil {
			in.log = l
		}
	}
}

func New(s Settler, opts ...Option) *Ingress {
	if s == nil {
		panic("webhooks: billing service is required")
	}
	in := &Ingress{
		billing:         s,
		signatureHeader: "X-Signature",
		timeout:         20 * time.Second,
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.log = in.log.With(logger.Component("webhooks"))
	return in
}

// Handle mounts POST /{gateway}.
func (in *Ingress) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/{gateway}", in.receive)
	return r
}

type ack struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeAck(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ack{Code: code, Message: msg})
}

func (in *Ingress) receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := in.log.With(
		logger.RequestID(middleware.GetReqID(ctx)),
		slog.String("gateway", chi.URLParam(r, "gateway")),
	)
	metrics := in.billing.Metrics()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		log.WarnContext(ctx, "webhook body unreadable", logger.Error(err))
		metrics.Webhook(billing.WebhookMalformed)
		writeAck(w, http.StatusOK, "00", "ignored")
		return
	}

	sig := r.Header.Get(in.signatureHeader)
	mock := in.billing.Mode() == gateway.ModeMock
	if (sig == "" && !mock) || (sig != "" && !in.billing.VerifyWebhook(body, sig)) {
		log.WarnContext(ctx, "webhook signature mismatch", logger.Event("webhook_bad_signature"))
		metrics.Webhook(billing.WebhookBadSignature)
		writeAck(w, http.StatusUnauthorized, "01", "invalid signature")
		return
	}

	ev, err := gateway.ParseWebhook(body)
	if err != nil {
		log.WarnContext(ctx, "webhook payload rejected", logger.Error(err))
		metrics.Webhook(billing.WebhookMalformed)
		writeAck(w, http.StatusOK, "00", "ignored")
		return
	}
	log = log.With(logger.OrderCode(ev.OrderCode))

	if ev.Status != gateway.StatusPaid {
		log.InfoContext(ctx, "webhook ignored", slog.String("status", string(ev.Status)))
		metrics.Webhook(billing.WebhookIgnored)
		writeAck(w, http.StatusOK, "00", "ignored")
		return
	}

	// Settlement must finish even if the gateway hangs up.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), in.timeout)
	defer cancel()

	outcome := in.settle(sctx, log, ev)
	metrics.Webhook(outcome)
	writeAck(w, http.StatusOK, "00", outcome)
}

func (in *Ingress) settle(ctx context.Context, log *slog.Logger, ev gateway.WebhookEvent) string {
	fact := billing.SettlementFact{
		TransactionID: ev.TransactionID,
		Amount:        ev.Amount,
		PaidAt:        ev.PaidAt,
	}

	p, err := in.billing.PaymentByOrderCode(ctx, ev.OrderCode)
	switch {
	case errors.Is(err, billing.ErrPaymentNotFound):
		return in.orderPayment(ctx, log, ev.OrderCode, fact)
	case err != nil:
		log.ErrorContext(ctx, "payment lookup failed", logger.Error(err))
		return billing.WebhookFailed
	}
	log = log.With(logger.PaymentID(p.ID))

	res, err := in.billing.SettlePayment(ctx, p.ID, fact)
	switch {
	case errors.Is(err, billing.ErrAmountMismatch):
		return billing.WebhookAmountMismatch
	case errors.Is(err, billing.ErrMaterializationConflict):
		// Already flagged and alerted by the billing service.
		return billing.WebhookSettled
	case err != nil:
		log.ErrorContext(ctx, "webhook settlement failed", logger.Error(err))
		return billing.WebhookFailed
	case res.Duplicate:
		log.InfoContext(ctx, "duplicate webhook", logger.Event("webhook_duplicate"))
		return billing.WebhookDuplicate
	}
	return billing.WebhookSettled
}

func (in *Ingress) orderPayment(ctx context.Context, log *slog.Logger, code int64, fact billing.SettlementFact) string {
	if in.orders != nil {
		found, err := in.orders.SettleOrderPayment(ctx, code, fact)
		if err != nil {
			log.ErrorContext(ctx, "order payment hand-off failed", logger.Error(err))
			return billing.WebhookFailed
		}
		if found {
			return billing.WebhookOrderPayment
		}
	}
	log.WarnContext(ctx, "webhook for unknown order code", logger.Event("webhook_unknown_order"))
	return billing.WebhookUnknownOrder
}
