package catalogue

import (
	"maps"
	"slices"
)

// PlanID identifies a plan. It is part of the persisted contract.
type PlanID string

const (
	PlanFree PlanID = "free"
	PlanPaid PlanID = "paid"
)

// Valid reports whether id is a known plan.
func (id PlanID) Valid() bool {
	switch id {
	case PlanFree, PlanPaid:
		return true
	}
	return false
}

func (id PlanID) String() string { return string(id) }

// Feature is a gated capability a plan may grant.
type Feature string

const (
	FeatureQRMenu                 Feature = "qr_menu"
	FeatureBasicReports           Feature = "basic_reports"
	FeatureOnlinePayment          Feature = "online_payment"
	FeatureAIAssistant            Feature = "ai_assistant"
	FeatureAIReports              Feature = "ai_reports"
	FeatureUnlimitedResourceUnits Feature = "unlimited_resource_units"
	FeaturePrioritySupport        Feature = "priority_support"
)

var allFeatures = []Feature{
	FeatureQRMenu,
	FeatureBasicReports,
	FeatureOnlinePayment,
	FeatureAIAssistant,
	FeatureAIReports,
	FeatureUnlimitedResourceUnits,
	FeaturePrioritySupport,
}

// AllFeatures returns every known feature in a stable order.
func AllFeatures() []Feature {
	return slices.Clone(allFeatures)
}

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	return slices.Contains(allFeatures, f)
}

// Currency is the only currency plans are priced in.
const Currency = "VND"

// Plan is a purchasable bundle of features and a resource cap.
// Prices are in minor units; PriceTotal includes VAT.
type Plan struct {
	ID               PlanID           `json:"plan_id" yaml:"plan_id" bson:"plan_id"`
	Name             string           `json:"name" yaml:"name" bson:"name"`
	Description      string           `json:"description" yaml:"description" bson:"description"`
	PriceBase        int64            `json:"price_base" yaml:"price_base" bson:"price_base"`
	PriceTax         int64            `json:"price_tax" yaml:"-" bson:"price_tax"`
	PriceTotal       int64            `json:"price_total" yaml:"-" bson:"price_total"`
	Currency         string           `json:"currency" yaml:"-" bson:"currency"`
	MaxResourceUnits *int64           `json:"max_resource_units" yaml:"max_resource_units" bson:"max_resource_units"`
	Features         map[Feature]bool `json:"features" yaml:"features" bson:"features"`
	IsActive         bool             `json:"is_active" yaml:"is_active" bson:"is_active"`
	SortOrder        int              `json:"sort_order" yaml:"sort_order" bson:"sort_order"`
}

// Has reports whether the plan grants f.
func (p Plan) Has(f Feature) bool {
	return p.Features[f]
}

// Unlimited reports whether the plan has no resource cap.
func (p Plan) Unlimited() bool {
	return p.MaxResourceUnits == nil
}

// IsFree reports whether the plan costs nothing.
func (p Plan) IsFree() bool {
	return p.ID == PlanFree || p.PriceBase == 0
}

// Clone returns a deep copy so callers cannot mutate a catalogue snapshot.
func (p Plan) Clone() Plan {
	out := p
	out.Features = maps.Clone(p.Features)
	if p.MaxResourceUnits != nil {
		v := *p.MaxResourceUnits
		out.MaxResourceUnits = &v
	}
	return out
}

// Cap returns a pointer to n, for building plans.
func Cap(n int64) *int64 {
	return &n
}
