package catalogue

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
)

// Snapshot is an immutable view of the plan set. A request should take one
// snapshot and use it throughout so it sees consistent plans.
type Snapshot struct {
	byID    map[PlanID]Plan
	ordered []Plan
}

// Plan returns a copy of the plan with id.
func (s *Snapshot) Plan(id PlanID) (Plan, bool) {
	p, ok := s.byID[id]
	if !ok {
		return Plan{}, false
	}
	return p.Clone(), true
}

// Active returns copies of every active plan ordered by SortOrder.
func (s *Snapshot) Active() []Plan {
	out := make([]Plan, 0, len(s.ordered))
	for _, p := range s.ordered {
		if p.IsActive {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Free returns the free plan. Every valid snapshot has one.
func (s *Snapshot) Free() Plan {
	return s.byID[PlanFree].Clone()
}

// CheapestWith returns the cheapest active plan granting f.
func (s *Snapshot) CheapestWith(f Feature) (Plan, bool) {
	var (
		best  Plan
		found bool
	)
	for _, p := range s.ordered {
		if !p.IsActive || !p.Has(f) {
			continue
		}
		if !found || p.PriceTotal < best.PriceTotal {
			best, found = p, true
		}
	}
	return best.Clone(), found
}

// Catalogue answers plan lookups from an atomically swapped snapshot.
type Catalogue struct {
	src      Source
	vat      VAT
	log      *slog.Logger
	snapshot atomic.Pointer[Snapshot]
}

// Option configures a Catalogue.
type Option func(*Catalogue)

// WithVAT sets the VAT used to derive plan totals. Defaults to 10%.
func WithVAT(v VAT) Option {
	return func(c *Catalogue) {
		c.vat = v
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Catalogue) {
		if log != nil {
			c.log = log
		}
	}
}

// New loads plans from src and returns a ready Catalogue.
func New(ctx context.Context, src Source, opts ...Option) (*Catalogue, error) {
	if src == nil {
		panic("catalogue: source is required")
	}
	c := &Catalogue{
		src: src,
		vat: VAT{bps: 1_000},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the source and swaps the snapshot. On failure the
// previous snapshot stays in place.
func (c *Catalogue) Reload(ctx context.Context) error {
	plans, err := c.src.Load(ctx)
	if err != nil {
		return err
	}
	snap, err := c.build(plans)
	if err != nil {
		return err
	}
	c.snapshot.Store(snap)
	c.log.InfoContext(ctx, "plan catalogue loaded",
		logger.Component("catalogue"),
		slog.Int("plans", len(snap.ordered)),
		slog.Float64("vat_rate", c.vat.Rate()),
	)
	return nil
}

// Seed validates plans, writes them to the source and reloads.
func (c *Catalogue) Seed(ctx context.Context, plans []Plan) error {
	seeder, ok := c.src.(Seeder)
	if !ok {
		return ErrSeedNotSupported
	}
	if _, err := c.build(plans); err != nil {
		return err
	}
	priced := make([]Plan, len(plans))
	for i, p := range plans {
		priced[i] = c.price(p)
	}
	if err := seeder.Save(ctx, priced); err != nil {
		return errors.Join(ErrSeedFailed, err)
	}
	return c.Reload(ctx)
}

// Snapshot returns the current immutable plan set.
func (c *Catalogue) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// GetPlan describes plan id.
func (c *Catalogue) GetPlan(id PlanID) (Plan, bool) {
	return c.Snapshot().Plan(id)
}

// ListActivePlans enumerates active plans ordered for display.
func (c *Catalogue) ListActivePlans() []Plan {
	return c.Snapshot().Active()
}

// VAT returns the configured VAT.
func (c *Catalogue) VAT() VAT {
	return c.vat
}

func (c *Catalogue) price(p Plan) Plan {
	p = p.Clone()
	p.PriceTax = c.vat.Tax(p.PriceBase)
	p.PriceTotal = p.PriceBase + p.PriceTax
	p.Currency = Currency
	return p
}

func (c *Catalogue) build(plans []Plan) (*Snapshot, error) {
	snap := &Snapshot{byID: make(map[PlanID]Plan, len(plans))}
	for _, raw := range plans {
		if err := Validate(raw); err != nil {
			return nil, err
		}
		if _, dup := snap.byID[raw.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlan, raw.ID)
		}
		p := c.price(raw)
		snap.byID[p.ID] = p
		snap.ordered = append(snap.ordered, p)
	}
	free, ok := snap.byID[PlanFree]
	if !ok || !free.IsActive {
		return nil, ErrNoFreePlan
	}
	slices.SortStableFunc(snap.ordered, func(a, b Plan) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})
	return snap, nil
}

// Validate checks a single plan definition.
func Validate(p Plan) error {
	switch {
	case !p.ID.Valid():
		return fmt.Errorf("%w: unknown plan id %q", ErrInvalidPlan, p.ID)
	case p.Name == "":
		return fmt.Errorf("%w: %s: name is required", ErrInvalidPlan, p.ID)
	case p.PriceBase < 0:
		return fmt.Errorf("%w: %s: negative price", ErrInvalidPlan, p.ID)
	case p.ID == PlanFree && p.PriceBase != 0:
		return fmt.Errorf("%w: free plan must cost nothing", ErrInvalidPlan)
	case p.ID != PlanFree && p.PriceBase == 0:
		return fmt.Errorf("%w: %s: paid plan needs a price", ErrInvalidPlan, p.ID)
	case p.MaxResourceUnits != nil && *p.MaxResourceUnits < 0:
		return fmt.Errorf("%w: %s: negative resource cap", ErrInvalidPlan, p.ID)
	case p.Has(FeatureUnlimitedResourceUnits) && p.MaxResourceUnits != nil:
		return fmt.Errorf("%w: %s: unlimited plan must not set max_resource_units", ErrInvalidPlan, p.ID)
	}
	for f := range p.Features {
		if !f.Valid() {
			return fmt.Errorf("%w: %s: unknown feature %q", ErrInvalidPlan, p.ID, f)
		}
	}
	return nil
}
