package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Mock is a deterministic local stand-in for the gateway. Every link
// reports PAID and every webhook verifies. Development only.
type Mock struct {
	checkoutURL string
	now         func() time.Time

	mu        sync.Mutex
	amounts   map[string]int64
	cancelled map[string]bool
}

// NewMock creates a mock whose checkout URLs live under checkoutURL.
func NewMock(checkoutURL string) *Mock {
	return &Mock{
		checkoutURL: strings.TrimRight(checkoutURL, "/"),
		now:         time.Now,
		amounts:     make(map[string]int64),
		cancelled:   make(map[string]bool),
	}
}

// MockLinkID is the link id the mock assigns to orderCode.
func MockLinkID(orderCode int64) string {
	return "mock-" + strconv.FormatInt(orderCode, 10)
}

func (m *Mock) CreateLink(_ context.Context, req LinkRequest) (Link, error) {
	if err := req.Validate(); err != nil {
		return Link{}, err
	}
	id := MockLinkID(req.OrderCode)
	m.mu.Lock()
	m.amounts[id] = req.Amount
	m.mu.Unlock()
	return Link{
		LinkID:      id,
		CheckoutURL: fmt.Sprintf("%s/%d", m.checkoutURL, req.OrderCode),
		QRCode:      fmt.Sprintf("MOCKPAY|%d|%d", req.OrderCode, req.Amount),
	}, nil
}

func (m *Mock) GetStatus(_ context.Context, linkID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelled[linkID] {
		return Status{Status: StatusCancelled}, nil
	}
	paidAt := m.now()
	return Status{
		Status:        StatusPaid,
		Amount:        m.amounts[linkID],
		TransactionID: "mock-tx-" + strings.TrimPrefix(linkID, "mock-"),
		PaidAt:        &paidAt,
	}, nil
}

func (m *Mock) CancelLink(_ context.Context, linkID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[linkID] = true
	return nil
}

func (m *Mock) VerifyWebhook([]byte, string) bool { return true }

func (m *Mock) Mode() Mode { return ModeMock }
