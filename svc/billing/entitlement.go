package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// ResourceKind names a tenant-scoped collection whose size is capped by
// the plan's max_resource_units.
type ResourceKind string

// ResourceTables is the dining-table collection of a restaurant.
const ResourceTables ResourceKind = "tables"

// Counter returns the point-in-time number of resources a tenant owns.
type Counter func(ctx context.Context, tenantID string) (int64, error)

// Resolve derives the effective plan and entitlement status of a
// subscription at now. It is a pure function: a lapsed trial or period
// resolves to free/expired without any persisted change.
func Resolve(sub *Subscription, now time.Time) (catalogue.PlanID, EntitlementStatus) {
	if sub == nil {
		return catalogue.PlanFree, EntitlementNone
	}
	switch sub.Status {
	case StatusTrial:
		end := sub.PeriodEnd
		if sub.TrialEndsAt != nil {
			end = *sub.TrialEndsAt
		}
		if !now.Before(end) {
			return catalogue.PlanFree, EntitlementExpired
		}
		return sub.PlanID, EntitlementTrial
	case StatusActive:
		if sub.PlanID != catalogue.PlanFree && !now.Before(sub.PeriodEnd) {
			return catalogue.PlanFree, EntitlementExpired
		}
		return sub.PlanID, EntitlementActive
	case StatusCancelled:
		return catalogue.PlanFree, EntitlementCancelled
	}
	return catalogue.PlanFree, EntitlementExpired
}

// lapsed reports whether a live subscription already resolves to expired.
func lapsed(sub *Subscription, now time.Time) bool {
	if sub == nil || !sub.Status.Live() {
		return false
	}
	_, status := Resolve(sub, now)
	return status == EntitlementExpired
}

// Access is the read-only gating view of a tenant at one instant.
type Access struct {
	TenantID     string
	Suspended    bool
	PlanID       catalogue.PlanID
	Status       EntitlementStatus
	Plan         catalogue.Plan
	Cap          *int64
	Subscription *Subscription

	plans *catalogue.Snapshot
}

func newAccess(t *Tenant, sub *Subscription, snap *catalogue.Snapshot, now time.Time) *Access {
	planID, status := Resolve(sub, now)
	plan, ok := snap.Plan(planID)
	if !ok {
		plan = snap.Free()
		planID = plan.ID
	}
	a := &Access{
		TenantID:     t.ID,
		Suspended:    t.IsSuspended,
		PlanID:       planID,
		Status:       status,
		Plan:         plan,
		Cap:          clonePtr(plan.MaxResourceUnits),
		Subscription: sub,
		plans:        snap,
	}
	if sub != nil && sub.PlanID == planID && sub.Status.Live() {
		a.Cap = clonePtr(sub.MaxResourceUnits)
	}
	if plan.Unlimited() {
		a.Cap = nil
	}
	return a
}

// Has reports whether the effective plan grants f.
func (a *Access) Has(f catalogue.Feature) bool {
	return a.Plan.Has(f)
}

// RequireFeature returns a *FeatureError naming the cheapest plan that
// grants f when the effective plan does not.
func (a *Access) RequireFeature(f catalogue.Feature) error {
	if a.Has(f) {
		return nil
	}
	required := catalogue.PlanPaid
	if a.plans != nil {
		if p, ok := a.plans.CheapestWith(f); ok {
			required = p.ID
		}
	}
	return &FeatureError{Feature: f, RequiredPlan: required}
}

// CheckQuota allows one more resource when the cap is unlimited or
// current is below it.
func (a *Access) CheckQuota(kind ResourceKind, current int64) error {
	if a.Cap == nil || current < *a.Cap {
		return nil
	}
	return &QuotaError{Kind: kind, Current: current, Cap: *a.Cap}
}

// Usage is the consumption of one resource kind.
type Usage struct {
	Current   int64  `json:"current"`
	Cap       *int64 `json:"cap"`
	Remaining *int64 `json:"remaining"`
}

func newUsage(current int64, limit *int64) Usage {
	u := Usage{Current: current, Cap: clonePtr(limit)}
	if limit != nil {
		u.Remaining = catalogue.Cap(max(0, *limit-current))
	}
	return u
}

// Entitlement is the owner-facing answer to "what am I entitled to now".
type Entitlement struct {
	TenantID          string                     `json:"tenant_id"`
	PlanID            catalogue.PlanID           `json:"plan_id"`
	PlanName          string                     `json:"plan_name"`
	Status            EntitlementStatus          `json:"status"`
	Features          map[catalogue.Feature]bool `json:"features"`
	SubscriptionID    string                     `json:"subscription_id,omitempty"`
	PeriodEnd         *time.Time                 `json:"period_end"`
	TrialEndsAt       *time.Time                 `json:"trial_ends_at"`
	CancelAtPeriodEnd bool                       `json:"cancel_at_period_end"`
	Usage             map[ResourceKind]Usage     `json:"resource_usage"`
}

func newEntitlement(a *Access) *Entitlement {
	e := &Entitlement{
		TenantID: a.TenantID,
		PlanID:   a.PlanID,
		PlanName: a.Plan.Name,
		Status:   a.Status,
		Features: make(map[catalogue.Feature]bool, len(catalogue.AllFeatures())),
		Usage:    make(map[ResourceKind]Usage),
	}
	for _, f := range catalogue.AllFeatures() {
		e.Features[f] = a.Plan.Has(f)
	}
	if sub := a.Subscription; sub != nil && sub.Status.Live() && a.Status != EntitlementExpired {
		e.SubscriptionID = sub.ID
		e.PeriodEnd = clonePtr(&sub.PeriodEnd)
		e.TrialEndsAt = clonePtr(sub.TrialEndsAt)
		e.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	}
	return e
}
