package billing

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

var (
	ErrTenantNotFound          = errors.New("billing: tenant not found")
	ErrSubscriptionNotFound    = errors.New("billing: subscription not found")
	ErrPendingNotFound         = errors.New("billing: pending registration not found")
	ErrPaymentNotFound         = errors.New("billing: payment not found")
	ErrNoSubscription          = errors.New("billing: no subscription to cancel")
	ErrAlreadySubscribed       = errors.New("billing: tenant already has an active subscription")
	ErrTrialAlreadyUsed        = errors.New("billing: trial was already used")
	ErrInvalidPlan             = errors.New("billing: plan is not purchasable")
	ErrSamePlan                = errors.New("billing: already subscribed to this plan")
	ErrSlugTaken               = errors.New("billing: slug is taken")
	ErrEmailTaken              = errors.New("billing: email is taken")
	ErrInvalidSlug             = errors.New("billing: invalid slug")
	ErrInvalidEmail            = errors.New("billing: invalid email")
	ErrWeakPassword            = errors.New("billing: password too short")
	ErrInvalidTenantName       = errors.New("billing: tenant name is required")
	ErrGatewayUnavailable      = errors.New("billing: payment gateway unavailable")
	ErrMaterializationConflict = errors.New("billing: registration conflicts with a live tenant")
	ErrDuplicateOrderCode      = errors.New("billing: duplicate gateway order code")
	ErrAmountMismatch          = errors.New("billing: paid amount below payment total")
	ErrPaymentNotPending       = errors.New("billing: payment is not pending")
	ErrPaymentRefunded         = errors.New("billing: payment was refunded")
	ErrInvalidCredentials      = errors.New("billing: invalid email or password")
	ErrTenantSuspended         = errors.New("billing: tenant is suspended")
	ErrFeatureNotInPlan        = errors.New("billing: feature not in plan")
	ErrQuotaExceeded           = errors.New("billing: resource quota exceeded")
	ErrUnknownResource         = errors.New("billing: no counter for resource kind")
)

// QuotaError reports a hit resource cap. It matches ErrQuotaExceeded.
type QuotaError struct {
	Kind    ResourceKind
	Current int64
	Cap     int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("billing: %s quota exceeded (current=%d, cap=%d)", e.Kind, e.Current, e.Cap)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// FeatureError reports a feature missing from the effective plan.
// It matches ErrFeatureNotInPlan.
type FeatureError struct {
	Feature      catalogue.Feature
	RequiredPlan catalogue.PlanID
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("billing: feature %s requires plan %s", e.Feature, e.RequiredPlan)
}

func (e *FeatureError) Is(target error) bool {
	return target == ErrFeatureNotInPlan
}
