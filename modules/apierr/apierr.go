// Package apierr translates domain errors into the JSON error envelope
// shared by every HTTP module.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/pkg/validator"
	"github.com/dmitrymomot/qrmenu/svc/admin"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/gate"
)

func key(code int, k string) handler.HTTPError {
	return handler.HTTPError{Code: code, Key: k}
}

// Billing maps billing and admin errors.
func Billing(err error) error {
	switch {
	case errors.Is(err, billing.ErrTenantNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, billing.ErrPendingNotFound),
		errors.Is(err, billing.ErrPaymentNotFound):
		return handler.NewStatusError(handler.ErrNotFound, "", err)

	case errors.Is(err, billing.ErrAlreadySubscribed):
		return handler.NewStatusError(key(http.StatusBadRequest, "already_subscribed"), "store already has an active subscription", err)
	case errors.Is(err, billing.ErrTrialAlreadyUsed):
		return handler.NewStatusError(key(http.StatusBadRequest, "trial_already_used"), "trial was already used", err)
	case errors.Is(err, billing.ErrSlugTaken):
		return handler.NewStatusError(key(http.StatusBadRequest, "slug_taken"), "store address is taken", err)
	case errors.Is(err, billing.ErrEmailTaken):
		return handler.NewStatusError(key(http.StatusBadRequest, "email_taken"), "email is already registered", err)
	case errors.Is(err, billing.ErrInvalidSlug):
		return handler.NewStatusError(key(http.StatusBadRequest, "invalid_slug"), "store address is invalid", err)
	case errors.Is(err, billing.ErrInvalidPlan):
		return handler.NewStatusError(key(http.StatusBadRequest, "invalid_plan"), "plan is not available", err)
	case errors.Is(err, billing.ErrSamePlan):
		return handler.NewStatusError(key(http.StatusBadRequest, "same_plan"), "already subscribed to this plan", err)
	case errors.Is(err, billing.ErrNoSubscription):
		return handler.NewStatusError(key(http.StatusBadRequest, "no_subscription"), "no paid subscription to cancel", err)
	case errors.Is(err, billing.ErrPaymentNotPending):
		return handler.NewStatusError(key(http.StatusConflict, "payment_not_pending"), "payment is no longer pending", err)
	case errors.Is(err, billing.ErrPaymentRefunded):
		return handler.NewStatusError(key(http.StatusConflict, "payment_refunded"), "payment was refunded", err)

	case errors.Is(err, billing.ErrInvalidEmail):
		return field("email", "must be a valid email address")
	case errors.Is(err, billing.ErrWeakPassword):
		return field("password", "must be between 8 and 72 characters")
	case errors.Is(err, billing.ErrInvalidTenantName):
		return field("tenant_name", "is required")

	case errors.Is(err, billing.ErrInvalidCredentials), errors.Is(err, admin.ErrInvalidCredentials):
		return handler.NewStatusError(key(http.StatusUnauthorized, "invalid_credentials"), "invalid email or password", err)
	case errors.Is(err, admin.ErrLoginDisabled):
		return handler.NewStatusError(handler.ErrForbidden, "super-admin login is disabled", err)
	case errors.Is(err, admin.ErrInvalidPeriod):
		return field("period", "must be month or year")

	case errors.Is(err, billing.ErrGatewayUnavailable):
		return handler.NewStatusError(key(http.StatusBadGateway, "gateway_unavailable"), "payment gateway is unavailable, try again", err)
	}
	return nil
}

// Validation maps validator.ValidationErrors to a 422 response.
func Validation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := handler.ValidationError{}
	for _, e := range verrs {
		out.Add(e.Field, e.Message)
	}
	return out
}

func field(name, msg string) error {
	return handler.FieldError(name, msg)
}

// Mappers is the full mapper chain in precedence order.
func Mappers() []handler.ErrorMapper {
	return []handler.ErrorMapper{gate.Errors, Billing, Validation}
}

// Handler returns the JSON error handler every module uses.
func Handler(log *slog.Logger) handler.ErrorHandler {
	return handler.NewErrorHandler(log, Mappers()...)
}

// Render writes err as a JSON envelope outside a typed handler.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	_ = handler.JSONError(handler.MapError(err, Mappers()...)).Render(w, r)
}
