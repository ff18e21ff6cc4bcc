package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: epoch} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu            sync.Mutex
	trials        []billing.TrialNotice
	reminders     []billing.TrialNotice
	payments      []billing.PaymentNotice
	upgrades      []billing.PaymentNotice
	cancellations []billing.CancellationNotice
	conflicts     []billing.ConflictNotice
	fail          error
}

func (r *recorder) TrialActivated(_ context.Context, n billing.TrialNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trials = append(r.trials, n)
	return r.fail
}

func (r *recorder) TrialExpiring(_ context.Context, n billing.TrialNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders = append(r.reminders, n)
	return r.fail
}

func (r *recorder) PaymentSucceeded(_ context.Context, n billing.PaymentNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, n)
	return r.fail
}

func (r *recorder) UpgradeSucceeded(_ context.Context, n billing.PaymentNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upgrades = append(r.upgrades, n)
	return r.fail
}

func (r *recorder) CancellationConfirmed(_ context.Context, n billing.CancellationNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancellations = append(r.cancellations, n)
	return r.fail
}

func (r *recorder) MaterializationConflict(_ context.Context, n billing.ConflictNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = append(r.conflicts, n)
	return r.fail
}

// flakyGateway wraps the mock and can fail link creation.
type flakyGateway struct {
	*gateway.Mock
	mu      sync.Mutex
	failing bool
	status  *gateway.Status
}

func (g *flakyGateway) setFailing(v bool) {
	g.mu.Lock()
	g.failing = v
	g.mu.Unlock()
}

func (g *flakyGateway) setStatus(st gateway.Status) {
	g.mu.Lock()
	g.status = &st
	g.mu.Unlock()
}

func (g *flakyGateway) CreateLink(ctx context.Context, req gateway.LinkRequest) (gateway.Link, error) {
	g.mu.Lock()
	failing := g.failing
	g.mu.Unlock()
	if failing {
		return gateway.Link{}, errors.Join(gateway.ErrUnavailable, errors.New("connection refused"))
	}
	return g.Mock.CreateLink(ctx, req)
}

func (g *flakyGateway) GetStatus(ctx context.Context, linkID string) (gateway.Status, error) {
	g.mu.Lock()
	st := g.status
	g.mu.Unlock()
	if st != nil {
		return *st, nil
	}
	return g.Mock.GetStatus(ctx, linkID)
}

type fixture struct {
	svc    *billing.Service
	store  *billing.MemoryStore
	clock  *clock
	notes  *recorder
	gw     *flakyGateway
	plans  *catalogue.Catalogue
	tables *tableCounter
}

type tableCounter struct {
	mu sync.Mutex
	n  map[string]int64
}

func (c *tableCounter) Count(_ context.Context, tenantID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[tenantID], nil
}

func (c *tableCounter) Set(tenantID string, n int64) {
	c.mu.Lock()
	c.n[tenantID] = n
	c.mu.Unlock()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	plans, err := catalogue.New(context.Background(), catalogue.NewStaticSource())
	require.NoError(t, err)

	f := &fixture{
		store:  billing.NewMemoryStore(),
		clock:  newClock(),
		notes:  &recorder{},
		gw:     &flakyGateway{Mock: gateway.NewMock("http://pay.local/checkout")},
		plans:  plans,
		tables: &tableCounter{n: make(map[string]int64)},
	}
	cfg := billing.DefaultConfig()
	cfg.BcryptCost = billing.MinBcryptCost
	f.svc = billing.New(f.store, plans, f.gw,
		billing.WithConfig(cfg),
		billing.WithClock(f.clock.Now),
		billing.WithNotifier(f.notes),
		billing.WithLogger(logger.Discard()),
		billing.WithResourceCounter(billing.ResourceTables, f.tables.Count),
	)
	return f
}

func (f *fixture) registerFree(t *testing.T, slug, email string) *billing.Tenant {
	t.Helper()
	tenant, err := f.svc.RegisterFree(context.Background(), billing.Registration{
		TenantName: "Cafe " + slug,
		Slug:       slug,
		Email:      email,
		Password:   "P@ssw0rd!",
	})
	require.NoError(t, err)
	return tenant
}

// payUpgrade creates an upgrade checkout at the current clock and settles it.
func (f *fixture) payUpgrade(t *testing.T, tenantID string) *billing.Settlement {
	t.Helper()
	ctx := context.Background()
	co, err := f.svc.CreateCheckoutForUpgrade(ctx, tenantID, catalogue.PlanPaid)
	require.NoError(t, err)
	p, err := f.store.GetPayment(ctx, co.PaymentID)
	require.NoError(t, err)
	res, err := f.svc.SettlePayment(ctx, co.PaymentID, billing.SettlementFact{
		TransactionID: "tx-" + co.PaymentID,
		Amount:        p.AmountTotal,
	})
	require.NoError(t, err)
	return res
}

const day = 24 * time.Hour
