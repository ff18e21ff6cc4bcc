package catalogue_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

func newCatalogue(t *testing.T, plans ...catalogue.Plan) *catalogue.Catalogue {
	t.Helper()
	vat, err := catalogue.NewVAT(0.1)
	require.NoError(t, err)
	cat, err := catalogue.New(context.Background(), catalogue.NewStaticSource(plans...), catalogue.WithVAT(vat))
	require.NoError(t, err)
	return cat
}

func TestVAT(t *testing.T) {
	t.Parallel()

	vat, err := catalogue.NewVAT(0.1)
	require.NoError(t, err)
	assert.Equal(t, int64(19_900), vat.Tax(199_000))
	assert.Equal(t, int64(218_900), vat.Total(199_000))
	assert.Equal(t, int64(1), vat.Tax(5), "rounds half up")
	assert.InDelta(t, 0.1, vat.Rate(), 1e-9)

	for _, bad := range []float64{-0.1, 1, 2} {
		_, err := catalogue.NewVAT(bad)
		assert.ErrorIs(t, err, catalogue.ErrInvalidVATRate)
	}
}

func TestCatalogue_Defaults(t *testing.T) {
	t.Parallel()
	cat := newCatalogue(t)

	free, ok := cat.GetPlan(catalogue.PlanFree)
	require.True(t, ok)
	assert.Equal(t, int64(0), free.PriceTotal)
	require.NotNil(t, free.MaxResourceUnits)
	assert.Equal(t, int64(10), *free.MaxResourceUnits)
	assert.True(t, free.Has(catalogue.FeatureQRMenu))
	assert.False(t, free.Has(catalogue.FeatureAIAssistant))

	paid, ok := cat.GetPlan(catalogue.PlanPaid)
	require.True(t, ok)
	assert.Equal(t, int64(199_000), paid.PriceBase)
	assert.Equal(t, int64(19_900), paid.PriceTax)
	assert.Equal(t, int64(218_900), paid.PriceTotal)
	assert.Equal(t, catalogue.Currency, paid.Currency)
	assert.True(t, paid.Unlimited())
	for _, f := range catalogue.AllFeatures() {
		assert.True(t, paid.Has(f), f)
	}

	_, ok = cat.GetPlan("gold")
	assert.False(t, ok)

	active := cat.ListActivePlans()
	require.Len(t, active, 2)
	assert.Equal(t, catalogue.PlanFree, active[0].ID)
	assert.Equal(t, catalogue.PlanPaid, active[1].ID)
}

func TestCatalogue_SnapshotIsImmutable(t *testing.T) {
	t.Parallel()
	cat := newCatalogue(t)

	free, _ := cat.GetPlan(catalogue.PlanFree)
	free.Features[catalogue.FeatureAIAssistant] = true
	*free.MaxResourceUnits = 1000

	again, _ := cat.GetPlan(catalogue.PlanFree)
	assert.False(t, again.Has(catalogue.FeatureAIAssistant))
	assert.Equal(t, int64(10), *again.MaxResourceUnits)
}

func TestCatalogue_InactivePlanHidden(t *testing.T) {
	t.Parallel()
	plans := catalogue.DefaultPlans()
	plans[1].IsActive = false
	cat := newCatalogue(t, plans...)

	assert.Len(t, cat.ListActivePlans(), 1)
	_, ok := cat.GetPlan(catalogue.PlanPaid)
	assert.True(t, ok, "inactive plans remain describable")

	_, ok = cat.Snapshot().CheapestWith(catalogue.FeatureAIAssistant)
	assert.False(t, ok)
}

func TestCatalogue_CheapestWith(t *testing.T) {
	t.Parallel()
	snap := newCatalogue(t).Snapshot()

	p, ok := snap.CheapestWith(catalogue.FeatureQRMenu)
	require.True(t, ok)
	assert.Equal(t, catalogue.PlanFree, p.ID)

	p, ok = snap.CheapestWith(catalogue.FeatureAIReports)
	require.True(t, ok)
	assert.Equal(t, catalogue.PlanPaid, p.ID)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() catalogue.Plan { return catalogue.DefaultPlans()[1] }

	tests := []struct {
		name   string
		mutate func(p *catalogue.Plan)
	}{
		{"unknown id", func(p *catalogue.Plan) { p.ID = "gold" }},
		{"missing name", func(p *catalogue.Plan) { p.Name = "" }},
		{"negative price", func(p *catalogue.Plan) { p.PriceBase = -1 }},
		{"zero priced paid plan", func(p *catalogue.Plan) { p.PriceBase = 0 }},
		{"unlimited with cap", func(p *catalogue.Plan) { p.MaxResourceUnits = catalogue.Cap(5) }},
		{"unknown feature", func(p *catalogue.Plan) { p.Features["teleport"] = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := base()
			tt.mutate(&p)
			assert.ErrorIs(t, catalogue.Validate(p), catalogue.ErrInvalidPlan)
		})
	}

	assert.NoError(t, catalogue.Validate(base()))

	free := catalogue.DefaultPlans()[0]
	free.PriceBase = 100
	assert.ErrorIs(t, catalogue.Validate(free), catalogue.ErrInvalidPlan)
}

func TestNew_RequiresFreePlan(t *testing.T) {
	t.Parallel()
	_, err := catalogue.New(context.Background(), catalogue.NewStaticSource(catalogue.DefaultPlans()[1]))
	assert.ErrorIs(t, err, catalogue.ErrNoFreePlan)

	dup := catalogue.DefaultPlans()
	dup = append(dup, dup[0])
	_, err = catalogue.New(context.Background(), catalogue.NewStaticSource(dup...))
	assert.ErrorIs(t, err, catalogue.ErrDuplicatePlan)
}

func TestCatalogue_Seed(t *testing.T) {
	t.Parallel()
	cat := newCatalogue(t)

	plans := catalogue.DefaultPlans()
	plans[1].PriceBase = 299_000
	require.NoError(t, cat.Seed(context.Background(), plans))

	paid, _ := cat.GetPlan(catalogue.PlanPaid)
	assert.Equal(t, int64(328_900), paid.PriceTotal)

	bad := catalogue.DefaultPlans()[1:]
	assert.ErrorIs(t, cat.Seed(context.Background(), bad), catalogue.ErrNoFreePlan)
	paid, _ = cat.GetPlan(catalogue.PlanPaid)
	assert.Equal(t, int64(328_900), paid.PriceTotal, "failed seed keeps previous snapshot")
}

func TestCatalogue_SeedNotSupported(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(plansYAML), 0o600))

	cat, err := catalogue.New(context.Background(), catalogue.NewFileSource(path))
	require.NoError(t, err)
	assert.ErrorIs(t, cat.Seed(context.Background(), catalogue.DefaultPlans()), catalogue.ErrSeedNotSupported)
}

func TestCatalogue_ConcurrentReadsDuringReload(t *testing.T) {
	t.Parallel()
	cat := newCatalogue(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				snap := cat.Snapshot()
				_, ok := snap.Plan(catalogue.PlanFree)
				assert.True(t, ok)
			}
		}()
	}
	for range 10 {
		require.NoError(t, cat.Reload(context.Background()))
	}
	wg.Wait()
}

const plansYAML = `
plans:
  - plan_id: free
    name: Free
    price_base: 0
    max_resource_units: 5
    features:
      qr_menu: true
    is_active: true
  - plan_id: paid
    name: Business
    price_base: 150000
    features:
      qr_menu: true
      ai_assistant: true
      unlimited_resource_units: true
    is_active: true
    sort_order: 1
`

func TestFileSource(t *testing.T) {
	t.Parallel()

	plans, err := catalogue.ParseYAML([]byte(plansYAML))
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, int64(5), *plans[0].MaxResourceUnits)
	assert.Nil(t, plans[1].MaxResourceUnits)
	assert.True(t, plans[1].Has(catalogue.FeatureAIAssistant))

	_, err = catalogue.ParseYAML([]byte("plans: [:"))
	assert.ErrorIs(t, err, catalogue.ErrLoadFailed)

	_, err = catalogue.NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")).Load(context.Background())
	assert.ErrorIs(t, err, catalogue.ErrLoadFailed)
}
