package webhooks_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/qrmenu/modules/webhooks"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

type mockSettler struct {
	mock.Mock
	metrics *billing.Metrics
}

func (m *mockSettler) VerifyWebhook(payload []byte, signature string) bool {
	return m.Called(payload, signature).Bool(0)
}

func (m *mockSettler) Mode() gateway.Mode { return gateway.ModeLive }

func (m *mockSettler) Metrics() *billing.Metrics { return m.metrics }

func (m *mockSettler) PaymentByOrderCode(ctx context.Context, orderCode int64) (*billing.Payment, error) {
	args := m.Called(ctx, orderCode)
	p, _ := args.Get(0).(*billing.Payment)
	return p, args.Error(1)
}

func (m *mockSettler) SettlePayment(ctx context.Context, paymentID string, fact billing.SettlementFact) (*billing.Settlement, error) {
	args := m.Called(ctx, paymentID, fact)
	s, _ := args.Get(0).(*billing.Settlement)
	return s, args.Error(1)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) SettleOrderPayment(ctx context.Context, code int64, fact billing.SettlementFact) (bool, error) {
	args := m.Called(ctx, code, fact)
	return args.Bool(0), args.Error(1)
}

func TestStoreFailuresStillAcknowledged(t *testing.T) {
	t.Parallel()

	payload := body(4242, 218900, "PAID", "tx-9")
	anyCtx := mock.Anything

	t.Run("lookup failure", func(t *testing.T) {
		t.Parallel()
		s := &mockSettler{metrics: billing.NewMetrics(prometheus.NewRegistry())}
		s.On("VerifyWebhook", payload, "sig").Return(true)
		s.On("PaymentByOrderCode", anyCtx, int64(4242)).Return(nil, errors.New("connection reset"))

		h := webhooks.New(s, webhooks.WithLogger(logger.Discard())).Handle()
		code, ack := post(t, h, payload, "sig")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "00", ack["code"])
		assert.Equal(t, billing.WebhookFailed, ack["message"])
		s.AssertNotCalled(t, "SettlePayment", anyCtx, mock.Anything, mock.Anything)
		s.AssertExpectations(t)
	})

	t.Run("settle failure", func(t *testing.T) {
		t.Parallel()
		s := &mockSettler{metrics: billing.NewMetrics(prometheus.NewRegistry())}
		s.On("VerifyWebhook", payload, "sig").Return(true)
		s.On("PaymentByOrderCode", anyCtx, int64(4242)).Return(&billing.Payment{ID: "pay-1"}, nil)
		s.On("SettlePayment", anyCtx, "pay-1", mock.MatchedBy(func(f billing.SettlementFact) bool {
			return f.TransactionID == "tx-9" && f.Amount == 218900
		})).Return(nil, errors.New("write conflict"))

		h := webhooks.New(s, webhooks.WithLogger(logger.Discard())).Handle()
		code, ack := post(t, h, payload, "sig")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, billing.WebhookFailed, ack["message"])
		s.AssertExpectations(t)
	})

	t.Run("order hand-off failure", func(t *testing.T) {
		t.Parallel()
		s := &mockSettler{metrics: billing.NewMetrics(prometheus.NewRegistry())}
		s.On("VerifyWebhook", payload, "sig").Return(true)
		s.On("PaymentByOrderCode", anyCtx, int64(4242)).Return(nil, billing.ErrPaymentNotFound)
		o := &mockOrders{}
		o.On("SettleOrderPayment", anyCtx, int64(4242), mock.Anything).Return(false, errors.New("orders down"))

		h := webhooks.New(s, webhooks.WithOrderPayments(o), webhooks.WithLogger(logger.Discard())).Handle()
		code, ack := post(t, h, payload, "sig")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, billing.WebhookFailed, ack["message"])
		o.AssertExpectations(t)
	})
}
