package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

func TestResolve(t *testing.T) {
	t.Parallel()
	now := epoch
	past, future := now.Add(-time.Second), now.Add(time.Hour)

	tests := []struct {
		name       string
		sub        *billing.Subscription
		wantPlan   catalogue.PlanID
		wantStatus billing.EntitlementStatus
	}{
		{"no subscription", nil, catalogue.PlanFree, billing.EntitlementNone},
		{"running trial", &billing.Subscription{PlanID: catalogue.PlanPaid, Status: billing.StatusTrial, TrialEndsAt: &future, PeriodEnd: future}, catalogue.PlanPaid, billing.EntitlementTrial},
		{"trial ending now", &billing.Subscription{PlanID: catalogue.PlanPaid, Status: billing.StatusTrial, TrialEndsAt: &now, PeriodEnd: now}, catalogue.PlanFree, billing.EntitlementExpired},
		{"active paid", &billing.Subscription{PlanID: catalogue.PlanPaid, Status: billing.StatusActive, PeriodEnd: future}, catalogue.PlanPaid, billing.EntitlementActive},
		{"cancel scheduled", &billing.Subscription{PlanID: catalogue.PlanPaid, Status: billing.StatusActive, PeriodEnd: future, CancelAtPeriodEnd: true}, catalogue.PlanPaid, billing.EntitlementActive},
		{"lapsed paid", &billing.Subscription{PlanID: catalogue.PlanPaid, Status: billing.StatusActive, PeriodEnd: past}, catalogue.PlanFree, billing.EntitlementExpired},
		{"implicit free never lapses", &billing.Subscription{PlanID: catalogue.PlanFree, Status: billing.StatusActive, PeriodEnd: past}, catalogue.PlanFree, billing.EntitlementActive},
		{"cancelled", &billing.Subscription{PlanID: catalogue.PlanPaid, Status: billing.StatusCancelled, PeriodEnd: future}, catalogue.PlanFree, billing.EntitlementCancelled},
		{"expired", &billing.Subscription{PlanID: catalogue.PlanPaid, Status: billing.StatusExpired, PeriodEnd: past}, catalogue.PlanFree, billing.EntitlementExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan, status := billing.Resolve(tt.sub, now)
			assert.Equal(t, tt.wantPlan, plan)
			assert.Equal(t, tt.wantStatus, status)

			again, againStatus := billing.Resolve(tt.sub, now)
			assert.Equal(t, plan, again)
			assert.Equal(t, status, againStatus)
		})
	}
}

func TestAccessCheckQuota(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tenant := f.registerFree(t, "acme", "owner@x.test")

	access, err := f.svc.Access(context.Background(), tenant.ID)
	require.NoError(t, err)
	require.NoError(t, access.CheckQuota(billing.ResourceTables, 9))

	err = access.CheckQuota(billing.ResourceTables, 10)
	require.ErrorIs(t, err, billing.ErrQuotaExceeded)
	var qe *billing.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.EqualValues(t, 10, qe.Current)
	assert.EqualValues(t, 10, qe.Cap)

	require.NoError(t, access.RequireFeature(catalogue.FeatureQRMenu))
}
