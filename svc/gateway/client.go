package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/pkg/webhook"
)

const (
	successCode     = "00"
	maxResponseSize = 1 << 20
	paymentsPath    = "/v2/payment-requests"
)

// Client talks to a PayOS-style hosted checkout API.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	log     *slog.Logger
	now     func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides the time source used for link expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates the live HTTP adapter.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	cfg.MockEnabled = false
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{},
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

type createLinkBody struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	BuyerName   string `json:"buyerName,omitempty"`
	BuyerEmail  string `json:"buyerEmail,omitempty"`
	BuyerPhone  string `json:"buyerPhone,omitempty"`
	Items       []Item `json:"items,omitempty"`
	CancelURL   string `json:"cancelUrl"`
	ReturnURL   string `json:"returnUrl"`
	ExpiredAt   int64  `json:"expiredAt,omitempty"`
	Signature   string `json:"signature"`
}

type linkData struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
}

type statusData struct {
	ID           string            `json:"id"`
	OrderCode    int64             `json:"orderCode"`
	Amount       int64             `json:"amount"`
	AmountPaid   int64             `json:"amountPaid"`
	Status       LinkStatus        `json:"status"`
	Transactions []transactionData `json:"transactions"`
}

type transactionData struct {
	Reference           string `json:"reference"`
	Amount              int64  `json:"amount"`
	TransactionDateTime string `json:"transactionDateTime"`
}

// RequestSignature is the checksum the gateway expects on a link request:
// HMAC-SHA256 over amount, cancelUrl, description, orderCode and returnUrl
// sorted by key.
func RequestSignature(checksumKey string, req LinkRequest) string {
	return webhook.SignFields(checksumKey, map[string]string{
		"amount":      strconv.FormatInt(req.Amount, 10),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   strconv.FormatInt(req.OrderCode, 10),
		"returnUrl":   req.ReturnURL,
	})
}

// CreateLink creates a hosted checkout link for req.
func (c *Client) CreateLink(ctx context.Context, req LinkRequest) (Link, error) {
	if err := req.Validate(); err != nil {
		return Link{}, err
	}
	body := createLinkBody{
		OrderCode:   req.OrderCode,
		Amount:      req.Amount,
		Description: req.Description,
		BuyerName:   req.Buyer.Name,
		BuyerEmail:  req.Buyer.Email,
		BuyerPhone:  req.Buyer.Phone,
		Items:       req.Items,
		CancelURL:   req.CancelURL,
		ReturnURL:   req.ReturnURL,
		Signature:   RequestSignature(c.cfg.ChecksumKey, req),
	}
	if req.ExpiresIn > 0 {
		body.ExpiredAt = c.now().Add(req.ExpiresIn).Unix()
	}

	var data linkData
	if err := c.do(ctx, http.MethodPost, paymentsPath, body, &data); err != nil {
		return Link{}, err
	}
	if data.PaymentLinkID == "" || data.CheckoutURL == "" {
		return Link{}, errors.Join(ErrUnavailable, errors.New("response without checkout link"))
	}
	return Link{LinkID: data.PaymentLinkID, CheckoutURL: data.CheckoutURL, QRCode: data.QRCode}, nil
}

// GetStatus fetches the current state of a link.
func (c *Client) GetStatus(ctx context.Context, linkID string) (Status, error) {
	var data statusData
	if err := c.do(ctx, http.MethodGet, paymentsPath+"/"+url.PathEscape(linkID), nil, &data); err != nil {
		return Status{}, err
	}
	st := Status{Status: data.Status, Amount: data.AmountPaid}
	if n := len(data.Transactions); n > 0 {
		last := data.Transactions[n-1]
		st.TransactionID = last.Reference
		if t, ok := parseGatewayTime(last.TransactionDateTime); ok {
			st.PaidAt = &t
		}
	}
	return st, nil
}

// CancelLink cancels an unpaid link.
func (c *Client) CancelLink(ctx context.Context, linkID, reason string) error {
	body := map[string]string{"cancellationReason": reason}
	return c.do(ctx, http.MethodPost, paymentsPath+"/"+url.PathEscape(linkID)+"/cancel", body, nil)
}

// VerifyWebhook checks the HMAC-SHA256 signature of the raw callback body.
func (c *Client) VerifyWebhook(payload []byte, signature string) bool {
	return webhook.Verify(c.cfg.ChecksumKey, payload, signature) == nil
}

func (c *Client) Mode() Mode { return ModeLive }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	req.Header.Set("x-client-id", c.cfg.ClientID)
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "gateway request failed",
			logger.Component("gateway"),
			slog.String("method", method),
			slog.String("path", path),
			logger.Error(err),
		)
		return errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	c.log.DebugContext(ctx, "gateway response",
		logger.Component("gateway"),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		logger.Duration(time.Since(start)),
	)

	if resp.StatusCode >= http.StatusInternalServerError {
		return errors.Join(ErrUnavailable, fmt.Errorf("http status %d", resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Join(ErrUnavailable, fmt.Errorf("undecodable response (http %d): %w", resp.StatusCode, err))
	}
	if env.Code != successCode {
		return &RejectedError{Code: env.Code, Desc: env.Desc}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.Join(ErrUnavailable, errors.New("response without data"))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Join(ErrUnavailable, fmt.Errorf("undecodable data: %w", err))
	}
	return nil
}

var gatewayZone = time.FixedZone("ICT", 7*60*60)

// parseGatewayTime accepts RFC 3339 and the gateway's local "2006-01-02 15:04:05".
func parseGatewayTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(time.DateTime, s, gatewayZone); err == nil {
		return t, true
	}
	return time.Time{}, false
}
