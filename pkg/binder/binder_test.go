package binder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmenu/pkg/binder"
)

type checkoutRequest struct {
	PlanID string `json:"plan_id"`
	Note   string `json:"note"`
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("binds body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"plan_id":"paid","note":"a\u0000b"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		var got checkoutRequest
		require.NoError(t, binder.JSON()(req, &got))
		assert.Equal(t, "paid", got.PlanID)
		assert.Equal(t, "ab", got.Note)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"plan_id":"paid","role":"admin"}`))
		req.Header.Set("Content-Type", "application/json")

		var got checkoutRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrFailedToParseJSON)
	})

	t.Run("rejects trailing data", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"plan_id":"paid"}{}`))
		req.Header.Set("Content-Type", "application/json")

		var got checkoutRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrFailedToParseJSON)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Content-Type", "application/json")

		var got checkoutRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrFailedToParseJSON)
	})

	t.Run("content type", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		var got checkoutRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrMissingContentType)

		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "text/plain")
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrUnsupportedMediaType)
	})

	t.Run("body too large", func(t *testing.T) {
		t.Parallel()
		payload := `{"note":"` + strings.Repeat("x", binder.DefaultMaxJSONSize) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		var got checkoutRequest
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrFailedToParseJSON)
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()

	type listRequest struct {
		Limit     int      `query:"limit"`
		Status    string   `query:"status"`
		Immediate bool     `query:"immediate"`
		Tags      []string `query:"tag"`
		Internal  string
	}

	t.Run("binds tagged fields", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/?limit=20&status=paid&immediate=yes&tag=a,b&internal=x", nil)

		var got listRequest
		require.NoError(t, binder.Query()(req, &got))
		assert.Equal(t, 20, got.Limit)
		assert.Equal(t, "paid", got.Status)
		assert.True(t, got.Immediate)
		assert.Equal(t, []string{"a", "b"}, got.Tags)
		assert.Empty(t, got.Internal)
	})

	t.Run("not applicable without query", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		var got listRequest
		assert.ErrorIs(t, binder.Query()(req, &got), binder.ErrBinderNotApplicable)
	})

	t.Run("invalid int", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
		var got listRequest
		assert.ErrorIs(t, binder.Query()(req, &got), binder.ErrFailedToParseQuery)
	})
}

func TestPath(t *testing.T) {
	t.Parallel()

	type paymentRequest struct {
		PaymentID string `path:"id"`
		Page      int    `path:"page"`
	}

	t.Run("chi url params", func(t *testing.T) {
		t.Parallel()
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", "pay-1")
		rctx.URLParams.Add("page", "3")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		var got paymentRequest
		require.NoError(t, binder.Path(nil)(req, &got))
		assert.Equal(t, "pay-1", got.PaymentID)
		assert.Equal(t, 3, got.Page)
	})

	t.Run("custom extractor", func(t *testing.T) {
		t.Parallel()
		params := map[string]string{"id": "pay-2"}
		extract := func(_ *http.Request, name string) string { return params[name] }
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		var got paymentRequest
		require.NoError(t, binder.Path(extract)(req, &got))
		assert.Equal(t, "pay-2", got.PaymentID)
	})

	t.Run("not applicable", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		var got paymentRequest
		assert.ErrorIs(t, binder.Path(func(*http.Request, string) string { return "" })(req, &got), binder.ErrBinderNotApplicable)
	})
}
