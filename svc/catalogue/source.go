package catalogue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source loads raw plan definitions. Prices are derived by the Catalogue.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

// Seeder is a Source that accepts administrative writes.
type Seeder interface {
	Source
	Save(ctx context.Context, plans []Plan) error
}

// DefaultPlans returns the built-in free and paid plans.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:               PlanFree,
			Name:             "Free",
			Description:      "QR menu and basic reports for a single small venue",
			PriceBase:        0,
			MaxResourceUnits: Cap(10),
			Features: map[Feature]bool{
				FeatureQRMenu:       true,
				FeatureBasicReports: true,
			},
			IsActive:  true,
			SortOrder: 0,
		},
		{
			ID:          PlanPaid,
			Name:        "Pro",
			Description: "Unlimited tables, online payment and AI tools",
			PriceBase:   199_000,
			Features: map[Feature]bool{
				FeatureQRMenu:                 true,
				FeatureBasicReports:           true,
				FeatureOnlinePayment:          true,
				FeatureAIAssistant:            true,
				FeatureAIReports:              true,
				FeatureUnlimitedResourceUnits: true,
				FeaturePrioritySupport:        true,
			},
			IsActive:  true,
			SortOrder: 1,
		},
	}
}

// StaticSource serves a fixed list of plans. It is also a Seeder holding
// seeded plans in memory.
type StaticSource struct {
	mu    sync.RWMutex
	plans []Plan
}

// NewStaticSource creates a source over plans. No plans means DefaultPlans.
func NewStaticSource(plans ...Plan) *StaticSource {
	if len(plans) == 0 {
		plans = DefaultPlans()
	}
	return &StaticSource{plans: clonePlans(plans)}
}

func (s *StaticSource) Load(context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePlans(s.plans), nil
}

func (s *StaticSource) Save(_ context.Context, plans []Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = clonePlans(plans)
	return nil
}

type planFile struct {
	Plans []Plan `yaml:"plans"`
}

// FileSource reads plans from a YAML document:
//
//	plans:
//	  - plan_id: free
//	    name: Free
//	    price_base: 0
//	    max_resource_units: 10
//	    features: {qr_menu: true, basic_reports: true}
//	    is_active: true
type FileSource struct {
	path string
}

// NewFileSource creates a YAML file source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(context.Context) ([]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrLoadFailed, err)
	}
	return ParseYAML(raw)
}

// ParseYAML decodes a plan document.
func ParseYAML(raw []byte) ([]Plan, error) {
	var doc planFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrLoadFailed, fmt.Errorf("decode plans yaml: %w", err))
	}
	return doc.Plans, nil
}

func clonePlans(plans []Plan) []Plan {
	out := make([]Plan, len(plans))
	for i, p := range plans {
		out[i] = p.Clone()
	}
	return out
}
