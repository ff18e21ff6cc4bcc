package gate

import (
	"errors"
	"strconv"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/svc/billing"
)

var (
	ErrNotAuthenticated = errors.New("gate: not authenticated")
	ErrForbidden        = errors.New("gate: forbidden")
)

// Errors maps authentication and entitlement failures to HTTP errors.
func Errors(err error) error {
	var featureErr *billing.FeatureError
	var quotaErr *billing.QuotaError
	switch {
	case errors.Is(err, jwt.ErrExpiredToken):
		return handler.NewStatusError(statusUnauthorized("token_expired"), "token expired", err)
	case errors.Is(err, jwt.ErrInvalidToken):
		return handler.NewStatusError(statusUnauthorized("invalid_token"), "invalid token", err)
	case errors.Is(err, jwt.ErrMissingToken), errors.Is(err, ErrNotAuthenticated):
		return handler.NewStatusError(statusUnauthorized("not_authenticated"), "authentication required", err)
	case errors.Is(err, billing.ErrTenantSuspended):
		return handler.NewStatusError(statusForbidden("tenant_suspended"), "store is suspended", err)
	case errors.As(err, &featureErr):
		return handler.NewStatusError(statusForbidden("feature_not_in_plan"), "feature is not included in your plan", err).
			WithDetails(map[string][]string{
				"feature":       {string(featureErr.Feature)},
				"required_plan": {string(featureErr.RequiredPlan)},
			})
	case errors.As(err, &quotaErr):
		return handler.NewStatusError(statusForbidden("quota_exceeded"), "resource limit reached", err).
			WithDetails(map[string][]string{
				"resource": {string(quotaErr.Kind)},
				"current":  {strconv.FormatInt(quotaErr.Current, 10)},
				"cap":      {strconv.FormatInt(quotaErr.Cap, 10)},
			})
	case errors.Is(err, ErrForbidden):
		return handler.NewStatusError(handler.ErrForbidden, "", err)
	}
	return nil
}

func statusUnauthorized(key string) handler.HTTPError {
	return handler.HTTPError{Code: handler.ErrUnauthorized.Code, Key: key}
}

func statusForbidden(key string) handler.HTTPError {
	return handler.HTTPError{Code: handler.ErrForbidden.Code, Key: key}
}
