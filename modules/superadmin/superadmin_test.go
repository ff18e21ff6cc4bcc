package superadmin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/qrmenu/modules/superadmin"
	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/admin"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gate"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

type env struct {
	h      http.Handler
	svc    *billing.Service
	tokens *jwt.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	plans, err := catalogue.New(context.Background(), catalogue.NewStaticSource())
	require.NoError(t, err)
	tokens, err := jwt.New(jwt.Config{Secret: "test-secret", TTL: time.Hour, Issuer: "qrmenu"})
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	store := billing.NewMemoryStore()
	cfg := billing.DefaultConfig()
	cfg.BcryptCost = billing.MinBcryptCost
	svc := billing.New(store, plans, gateway.NewMock("http://pay.local"),
		billing.WithConfig(cfg),
		billing.WithLogger(logger.Discard()),
	)
	a := admin.New(admin.Config{Email: "root@qrmenu.test", PasswordHash: string(hash)}, store, svc, tokens,
		admin.WithLogger(logger.Discard()),
	)
	g := gate.New(svc, tokens, gate.WithLogger(logger.Discard()))
	m := superadmin.New(a,
		superadmin.WithAuth(g.Authenticate, g.RequireSuperAdmin),
		superadmin.WithLogger(logger.Discard()),
	)
	return &env{h: m.Handle(), svc: svc, tokens: tokens}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (e *env) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	var out envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (e *env) login(t *testing.T) string {
	t.Helper()
	code, out := e.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "root@qrmenu.test",
		"password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, code)
	var tok admin.Token
	require.NoError(t, json.Unmarshal(out.Data, &tok))
	return tok.AccessToken
}

func (e *env) tenant(t *testing.T, slug string) *billing.Tenant {
	t.Helper()
	tenant, err := e.svc.RegisterFree(context.Background(), billing.Registration{
		TenantName: "Cafe " + slug, Slug: slug, Email: slug + "@x.test", Password: "P@ssw0rd!",
	})
	require.NoError(t, err)
	return tenant
}

func TestLogin(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	code, out := e.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "root@qrmenu.test",
		"password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_credentials", out.Error.Code)

	claims, err := e.tokens.Parse(e.login(t))
	require.NoError(t, err)
	assert.True(t, claims.IsSuperAdmin())
}

func TestRequiresSuperAdmin(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	tenant := e.tenant(t, "owner-shop")
	owner, _, err := e.tokens.Issue(tenant.ID, jwt.RoleOwner, tenant.ID, tenant.OwnerEmail)
	require.NoError(t, err)

	code, _ := e.do(t, http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, out := e.do(t, http.MethodGet, "/dashboard", owner, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", out.Error.Code)
}

func TestStores(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)
	a := e.tenant(t, "com-ga")
	e.tenant(t, "bun-rieu")

	code, out := e.do(t, http.MethodGet, "/stores?search=com&limit=10", token, nil)
	require.Equal(t, http.StatusOK, code)
	var list []billing.Tenant
	require.NoError(t, json.Unmarshal(out.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.EqualValues(t, 1, out.Meta["total"])

	code, out = e.do(t, http.MethodGet, "/stores?suspended=maybe", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, out = e.do(t, http.MethodPut, "/stores/"+a.ID+"/suspend", token, map[string]string{"reason": " unpaid invoices "})
	require.Equal(t, http.StatusOK, code)
	var suspended billing.Tenant
	require.NoError(t, json.Unmarshal(out.Data, &suspended))
	assert.True(t, suspended.IsSuspended)
	assert.Equal(t, "unpaid invoices", suspended.SuspensionReason)

	code, out = e.do(t, http.MethodGet, "/stores?suspended=true", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(out.Data, &list))
	require.Len(t, list, 1)

	code, out = e.do(t, http.MethodGet, "/stores/"+a.ID, token, nil)
	require.Equal(t, http.StatusOK, code)
	var detail admin.StoreDetail
	require.NoError(t, json.Unmarshal(out.Data, &detail))
	assert.True(t, detail.Tenant.IsSuspended)
	assert.Nil(t, detail.Subscription)

	code, _ = e.do(t, http.MethodPut, "/stores/"+a.ID+"/activate", token, nil)
	require.Equal(t, http.StatusOK, code)
	tenant, err := e.svc.Tenant(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, tenant.IsSuspended)

	code, _ = e.do(t, http.MethodGet, "/stores/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSuspendWithoutBody(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)
	a := e.tenant(t, "pho-cuon")

	code, _ := e.do(t, http.MethodPut, "/stores/"+a.ID+"/suspend", token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestDashboardAndRevenue(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	token := e.login(t)
	e.tenant(t, "banh-xeo")

	code, out := e.do(t, http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusOK, code)
	var d admin.Dashboard
	require.NoError(t, json.Unmarshal(out.Data, &d))
	assert.EqualValues(t, 1, d.Stores)

	code, out = e.do(t, http.MethodGet, "/revenue?period=year", token, nil)
	require.Equal(t, http.StatusOK, code)
	var rev admin.Revenue
	require.NoError(t, json.Unmarshal(out.Data, &rev))
	assert.Equal(t, admin.PeriodYear, rev.Period)
	assert.Len(t, rev.Buckets, 12)

	code, _ = e.do(t, http.MethodGet, "/revenue?period=week", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = e.do(t, http.MethodGet, "/payments?from=yesterday", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, out = e.do(t, http.MethodGet, "/subscriptions", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(out.Data))
}
