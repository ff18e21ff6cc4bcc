package account_test

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

	"github.com/dmitrymomot/qrmenu/modules/account"
	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gateway"
)

func setup(t *testing.T) (http.Handler, *jwt.Service, *billing.Tenant) {
	t.Helper()
	plans, err := catalogue.New(context.Background(), catalogue.NewStaticSource())
	require.NoError(t, err)
	tokens, err := jwt.New(jwt.Config{Secret: "test-secret", TTL: time.Hour, Issuer: "qrmenu"})
	require.NoError(t, err)

	cfg := billing.DefaultConfig()
	cfg.BcryptCost = billing.MinBcryptCost
	svc := billing.New(billing.NewMemoryStore(), plans, gateway.NewMock("http://pay.local"),
		billing.WithConfig(cfg),
		billing.WithLogger(logger.Discard()),
	)
	tenant, err := svc.RegisterFree(context.Background(), billing.Registration{
		TenantName: "Pho Thin",
		Slug:       "pho-thin",
		Email:      "owner@phothin.vn",
		Password:   "correct horse",
	})
	require.NoError(t, err)

	pw := account.NewPasswordService(svc, tokens, account.WithLogger(logger.Discard()))
	return account.Router(account.RouterOptions{Password: pw}), tokens, tenant
}

func login(t *testing.T, h http.Handler, email, password string) (int, map[string]any) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestLogin(t *testing.T) {
	t.Parallel()
	h, tokens, tenant := setup(t)

	t.Run("valid credentials", func(t *testing.T) {
		t.Parallel()
		code, body := login(t, h, " Owner@PhoThin.vn ", "correct horse")
		require.Equal(t, http.StatusOK, code)
		data := body["data"].(map[string]any)
		assert.Equal(t, "Bearer", data["token_type"])

		claims, err := tokens.Parse(data["access_token"].(string))
		require.NoError(t, err)
		assert.Equal(t, jwt.RoleOwner, claims.Role)
		assert.Equal(t, tenant.ID, claims.TenantID)
		assert.Equal(t, tenant.OwnerEmail, claims.Email)
	})

	for name, tc := range map[string]struct{ email, password string }{
		"wrong password": {"owner@phothin.vn", "battery staple"},
		"unknown email":  {"nobody@phothin.vn", "correct horse"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			code, body := login(t, h, tc.email, tc.password)
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Equal(t, "invalid_credentials", body["error"].(map[string]any)["code"])
		})
	}
}
