package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WebhookEvent is a decoded gateway callback.
type WebhookEvent struct {
	Code          string
	OrderCode     int64
	Amount        int64
	Status        LinkStatus
	TransactionID string
	LinkID        string
	PaidAt        *time.Time
}

type webhookBody struct {
	Code    string       `json:"code"`
	Desc    string       `json:"desc"`
	Success *bool        `json:"success"`
	Data    *webhookData `json:"data"`
}

type webhookData struct {
	OrderCode     *int64     `json:"order_code"`
	Amount        *int64     `json:"amount"`
	Status        LinkStatus `json:"status"`
	TransactionID string     `json:"transaction_id"`
	LinkID        string     `json:"payment_link_id"`
	PaidAt        string     `json:"paid_at"`
}

// ParseWebhook decodes a callback body. It requires a top-level success
// flag and a payload carrying order_code, amount, status and transaction_id.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return WebhookEvent{}, errors.Join(ErrMalformedWebhook, err)
	}
	switch {
	case wb.Success == nil:
		return WebhookEvent{}, fmt.Errorf("%w: missing success flag", ErrMalformedWebhook)
	case wb.Data == nil:
		return WebhookEvent{}, fmt.Errorf("%w: missing data", ErrMalformedWebhook)
	case wb.Data.OrderCode == nil:
		return WebhookEvent{}, fmt.Errorf("%w: missing order_code", ErrMalformedWebhook)
	case wb.Data.Amount == nil:
		return WebhookEvent{}, fmt.Errorf("%w: missing amount", ErrMalformedWebhook)
	case wb.Data.Status == "":
		return WebhookEvent{}, fmt.Errorf("%w: missing status", ErrMalformedWebhook)
	case wb.Data.TransactionID == "" && wb.Data.Status == StatusPaid:
		return WebhookEvent{}, fmt.Errorf("%w: missing transaction_id", ErrMalformedWebhook)
	}

	ev := WebhookEvent{
		Code:          wb.Code,
		OrderCode:     *wb.Data.OrderCode,
		Amount:        *wb.Data.Amount,
		Status:        wb.Data.Status,
		TransactionID: wb.Data.TransactionID,
		LinkID:        wb.Data.LinkID,
	}
	if !*wb.Success {
		// A failed delivery never settles, whatever status it claims.
		if ev.Status == StatusPaid {
			ev.Status = StatusPending
		}
	}
	if t, ok := parseGatewayTime(wb.Data.PaidAt); ok {
		ev.PaidAt = &t
	}
	return ev, nil
}
