package admin_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/admin"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	admin  *admin.Service
	svc    *billing.Service
	store  *billing.MemoryStore
	tokens *jwt.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	plans, err := catalogue.New(context.Background(), catalogue.NewStaticSource())
	require.NoError(t, err)
	tokens, err := jwt.New(jwt.Config{Secret: "s3cret", TTL: time.Hour})
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	store := billing.NewMemoryStore()
	cfg := billing.DefaultConfig()
	cfg.BcryptCost = billing.MinBcryptCost
	clock := func() time.Time { return now }
	svc := billing.New(store, plans, gateway.NewMock("http://pay.local"),
		billing.WithConfig(cfg),
		billing.WithClock(clock),
		billing.WithLogger(logger.Discard()),
	)
	a := admin.New(admin.Config{Email: "root@qrmenu.test", PasswordHash: string(hash)}, store, svc, tokens,
		admin.WithClock(clock),
		admin.WithLogger(logger.Discard()),
	)
	return &env{admin: a, svc: svc, store: store, tokens: tokens}
}

func (e *env) tenant(t *testing.T, slug string) *billing.Tenant {
	t.Helper()
	tenant, err := e.svc.RegisterFree(context.Background(), billing.Registration{
		TenantName: "Cafe " + slug, Slug: slug, Email: slug + "@x.test", Password: "P@ssw0rd!",
	})
	require.NoError(t, err)
	return tenant
}

func (e *env) paid(t *testing.T, tenantID string, code int64, amount int64, at time.Time) {
	t.Helper()
	id := fmt.Sprintf("pay-%d", code)
	require.NoError(t, e.store.CreatePayment(context.Background(), &billing.Payment{
		ID: id, TenantID: tenantID, AmountTotal: amount, Currency: "VND",
		Status: billing.PaymentPending, OrderCode: code, CreatedAt: at,
	}))
	_, _, err := e.store.MarkPaymentPaid(context.Background(), id, fmt.Sprintf("tx-%d", code), at, nil)
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	tok, err := e.admin.Login(ctx, " Root@QRMenu.test ", "admin-pass")
	require.NoError(t, err)
	claims, err := e.tokens.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsSuperAdmin())
	assert.Empty(t, claims.TenantID)

	_, err = e.admin.Login(ctx, "root@qrmenu.test", "wrong")
	assert.ErrorIs(t, err, admin.ErrInvalidCredentials)
	_, err = e.admin.Login(ctx, "other@qrmenu.test", "admin-pass")
	assert.ErrorIs(t, err, admin.ErrInvalidCredentials)

	disabled := admin.New(admin.Config{}, e.store, e.svc, e.tokens, admin.WithLogger(logger.Discard()))
	_, err = disabled.Login(ctx, "root@qrmenu.test", "admin-pass")
	assert.ErrorIs(t, err, admin.ErrLoginDisabled)
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	a := e.tenant(t, "pho")
	b := e.tenant(t, "bun")
	_, err := e.svc.ActivateTrial(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.admin.Suspend(ctx, b.ID, " fraud ")
	require.NoError(t, err)

	e.paid(t, a.ID, 1, 218900, now.Add(-48*time.Hour))
	e.paid(t, a.ID, 2, 218900, now.AddDate(0, -1, 0))

	d, err := e.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, d.Stores)
	assert.EqualValues(t, 1, d.SuspendedStores)
	assert.EqualValues(t, 1, d.TrialSubscriptions)
	assert.EqualValues(t, 218900, d.RevenueThisMonth)

	detail, err := e.admin.Store(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, detail.Tenant.IsSuspended)
	assert.Equal(t, "fraud", detail.Tenant.SuspensionReason)
	assert.Nil(t, detail.Subscription)

	activated, err := e.admin.Activate(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, activated.IsSuspended)
}

func TestRevenue(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	a := e.tenant(t, "lau")

	e.paid(t, a.ID, 1, 100, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	e.paid(t, a.ID, 2, 200, time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC))
	e.paid(t, a.ID, 3, 300, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	e.paid(t, a.ID, 4, 400, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	e.paid(t, a.ID, 5, 500, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))

	month, err := e.admin.Revenue(ctx, admin.PeriodMonth)
	require.NoError(t, err)
	require.Len(t, month.Buckets, 31)
	assert.EqualValues(t, 600, month.Total)
	assert.EqualValues(t, 300, month.Buckets[0].Amount)
	assert.Equal(t, 2, month.Buckets[0].Payments)
	assert.EqualValues(t, 300, month.Buckets[13].Amount)
	assert.Equal(t, "2026-03-14", month.Buckets[13].Label)

	year, err := e.admin.Revenue(ctx, admin.PeriodYear)
	require.NoError(t, err)
	require.Len(t, year.Buckets, 12)
	assert.EqualValues(t, 1000, year.Total)
	assert.EqualValues(t, 400, year.Buckets[0].Amount)
	assert.EqualValues(t, 600, year.Buckets[2].Amount)
	assert.Zero(t, year.Buckets[1].Amount)

	_, err = e.admin.Revenue(ctx, "week")
	assert.ErrorIs(t, err, admin.ErrInvalidPeriod)
}
