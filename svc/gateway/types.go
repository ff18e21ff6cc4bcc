package gateway

import (
	"context"
	"time"
)

// Mode tells which adapter implementation is in use.
type Mode string

const (
	ModeLive Mode = "live"
	ModeMock Mode = "mock"
)

// LinkStatus is the gateway-side state of a checkout link.
type LinkStatus string

const (
	StatusPending   LinkStatus = "PENDING"
	StatusPaid      LinkStatus = "PAID"
	StatusCancelled LinkStatus = "CANCELLED"
	StatusExpired   LinkStatus = "EXPIRED"
)

// Buyer is the optional payer contact passed to the checkout page.
type Buyer struct {
	Name  string
	Email string
	Phone string
}

// Item is one checkout line.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// LinkRequest asks the gateway for a hosted checkout link.
type LinkRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	Buyer       Buyer
	ReturnURL   string
	CancelURL   string
	Items       []Item
	ExpiresIn   time.Duration
}

// Validate checks the fields the gateway signs.
func (r LinkRequest) Validate() error {
	switch {
	case r.OrderCode <= 0:
		return ErrInvalidRequest
	case r.Amount <= 0:
		return ErrInvalidRequest
	case r.Description == "", r.ReturnURL == "", r.CancelURL == "":
		return ErrInvalidRequest
	}
	return nil
}

// Link is a created checkout link.
type Link struct {
	LinkID      string
	CheckoutURL string
	QRCode      string
}

// Status is what the gateway knows about a link.
type Status struct {
	Status        LinkStatus
	Amount        int64
	TransactionID string
	PaidAt        *time.Time
}

// Adapter is the outbound contract towards the hosted-checkout provider.
type Adapter interface {
	CreateLink(ctx context.Context, req LinkRequest) (Link, error)
	GetStatus(ctx context.Context, linkID string) (Status, error)
	CancelLink(ctx context.Context, linkID, reason string) error
	VerifyWebhook(payload []byte, signature string) bool
	Mode() Mode
}

// New returns the mock adapter when mock mode is on and the HTTP client
// otherwise. The config is validated first.
func New(cfg Config, opts ...ClientOption) (Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MockEnabled {
		return NewMock(cfg.MockCheckoutURL), nil
	}
	return NewClient(cfg, opts...)
}
