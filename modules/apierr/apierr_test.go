package apierr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/modules/apierr"
	"github.com/dmitrymomot/qrmenu/pkg/validator"
	"github.com/dmitrymomot/qrmenu/svc/billing"
)

func TestStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{billing.ErrAlreadySubscribed, http.StatusBadRequest},
		{billing.ErrSlugTaken, http.StatusBadRequest},
		{billing.ErrEmailTaken, http.StatusBadRequest},
		{errors.Join(billing.ErrInvalidSlug, errors.New("too short")), http.StatusBadRequest},
		{billing.ErrSamePlan, http.StatusBadRequest},
		{billing.ErrNoSubscription, http.StatusBadRequest},
		{billing.ErrPaymentNotFound, http.StatusNotFound},
		{billing.ErrTenantSuspended, http.StatusForbidden},
		{&billing.FeatureError{Feature: "ai_assistant", RequiredPlan: "paid"}, http.StatusForbidden},
		{&billing.QuotaError{Kind: billing.ResourceTables, Current: 10, Cap: 10}, http.StatusForbidden},
		{errors.Join(billing.ErrGatewayUnavailable, errors.New("timeout")), http.StatusBadGateway},
		{billing.ErrWeakPassword, http.StatusUnprocessableEntity},
		{billing.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, handler.StatusOf(handler.MapError(tt.err, apierr.Mappers()...)))
		})
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()
	err := validator.Apply(validator.ValidEmail("email", "nope"))
	mapped := apierr.Validation(err)

	var verr handler.ValidationError
	assert.ErrorAs(t, mapped, &verr)
	assert.True(t, verr.Has("email"))
	assert.Nil(t, apierr.Validation(errors.New("other")))
}
