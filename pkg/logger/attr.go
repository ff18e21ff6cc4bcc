package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

func TenantID(id string) slog.Attr {
	return slog.String("tenant_id", id)
}

func SubscriptionID(id string) slog.Attr {
	return slog.String("subscription_id", id)
}

func PaymentID(id string) slog.Attr {
	return slog.String("payment_id", id)
}

func PendingID(id string) slog.Attr {
	return slog.String("pending_id", id)
}

func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

// OrderCode records the gateway order code under the key "order_code".
func OrderCode(code int64) slog.Attr {
	return slog.Int64("order_code", code)
}

// Job records the periodic job name under the key "job".
func Job(name string) slog.Attr {
	return slog.String("job", name)
}
