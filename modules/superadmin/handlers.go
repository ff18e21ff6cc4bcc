package superadmin

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/pkg/binder"
	"github.com/dmitrymomot/qrmenu/svc/admin"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

func wrap[R any](m *Module, h handler.HandlerFunc[R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders(binders...),
		handler.WithErrorHandler(m.errorHandler),
	)
}

var (
	bindJSON  = handler.Bind(binder.JSON())
	bindQuery = handler.Bind(binder.Query())
	bindPath  = handler.Bind(binder.Path(nil))
)

// bindOptionalJSON binds a JSON body when one is sent.
func bindOptionalJSON(r *http.Request, v any) error {
	if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
		return binder.ErrBinderNotApplicable
	}
	return bindJSON(r, v)
}

type empty struct{}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (m *Module) login(ctx handler.Context, req loginRequest) handler.Response {
	tok, err := m.admin.Login(ctx, req.Email, req.Password)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(tok)
}

func (m *Module) dashboard(ctx handler.Context, _ empty) handler.Response {
	d, err := m.admin.Dashboard(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(d)
}

func page(limit, offset int) billing.Page {
	return billing.Page{Limit: limit, Offset: offset}.Normalize()
}

func paged[T any](items []T, total int64, p billing.Page) handler.Response {
	if items == nil {
		items = []T{}
	}
	return handler.JSON(items, handler.WithJSONMeta(map[string]any{
		"total":  total,
		"limit":  p.Limit,
		"offset": p.Offset,
	}))
}

type storesRequest struct {
	Limit     int    `query:"limit"`
	Offset    int    `query:"offset"`
	Search    string `query:"search"`
	Suspended string `query:"suspended"`
	PlanID    string `query:"plan_id"`
}

func (m *Module) stores(ctx handler.Context, req storesRequest) handler.Response {
	f := billing.TenantFilter{
		Page:   page(req.Limit, req.Offset),
		Search: strings.TrimSpace(req.Search),
		PlanID: catalogue.PlanID(req.PlanID),
	}
	switch req.Suspended {
	case "":
	case "true", "false":
		v := req.Suspended == "true"
		f.Suspended = &v
	default:
		return handler.Fail(invalid("suspended", "must be true or false"))
	}
	items, total, err := m.admin.Stores(ctx, f)
	if err != nil {
		return handler.Fail(err)
	}
	return paged(items, total, f.Page)
}

type storeRequest struct {
	ID string `path:"id"`
}

func (m *Module) store(ctx handler.Context, req storeRequest) handler.Response {
	d, err := m.admin.Store(ctx, req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(d)
}

type suspendRequest struct {
	ID     string `path:"id"`
	Reason string `json:"reason"`
}

func (m *Module) suspend(ctx handler.Context, req suspendRequest) handler.Response {
	t, err := m.admin.Suspend(ctx, req.ID, req.Reason)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(t)
}

func (m *Module) activate(ctx handler.Context, req storeRequest) handler.Response {
	t, err := m.admin.Activate(ctx, req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(t)
}

type subscriptionsRequest struct {
	Limit    int    `query:"limit"`
	Offset   int    `query:"offset"`
	TenantID string `query:"tenant_id"`
	Status   string `query:"status"`
	PlanID   string `query:"plan_id"`
}

func (m *Module) subscriptions(ctx handler.Context, req subscriptionsRequest) handler.Response {
	f := billing.SubscriptionFilter{
		Page:     page(req.Limit, req.Offset),
		TenantID: req.TenantID,
		Status:   billing.SubscriptionStatus(req.Status),
		PlanID:   catalogue.PlanID(req.PlanID),
	}
	items, total, err := m.admin.Subscriptions(ctx, f)
	if err != nil {
		return handler.Fail(err)
	}
	return paged(items, total, f.Page)
}

type paymentsRequest struct {
	Limit    int    `query:"limit"`
	Offset   int    `query:"offset"`
	TenantID string `query:"tenant_id"`
	Status   string `query:"status"`
	From     string `query:"from"`
	To       string `query:"to"`
}

const dateLayout = "2006-01-02"

func (m *Module) payments(ctx handler.Context, req paymentsRequest) handler.Response {
	f := billing.PaymentFilter{
		Page:     page(req.Limit, req.Offset),
		TenantID: req.TenantID,
		Status:   billing.PaymentStatus(req.Status),
	}
	if req.From != "" {
		from, err := time.Parse(dateLayout, req.From)
		if err != nil {
			return handler.Fail(invalid("from", "must be a date like 2026-01-31"))
		}
		f.PaidFrom = &from
	}
	if req.To != "" {
		to, err := time.Parse(dateLayout, req.To)
		if err != nil {
			return handler.Fail(invalid("to", "must be a date like 2026-01-31"))
		}
		// inclusive of the whole day
		to = to.AddDate(0, 0, 1)
		f.PaidTo = &to
	}
	items, total, err := m.admin.Payments(ctx, f)
	if err != nil {
		return handler.Fail(err)
	}
	return paged(items, total, f.Page)
}

type revenueRequest struct {
	Period string `query:"period"`
}

func (m *Module) revenue(ctx handler.Context, req revenueRequest) handler.Response {
	rev, err := m.admin.Revenue(ctx, admin.Period(req.Period))
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(rev)
}

func invalid(field, msg string) error {
	return handler.FieldError(field, msg)
}
