package subscriptions

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/pkg/binder"
	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/qrcode"
	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
	"github.com/dmitrymomot/qrmenu/svc/gate"
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

func tenantOf(ctx handler.Context) (string, error) {
	id, ok := gate.TenantID(ctx)
	if !ok {
		return "", gate.ErrNotAuthenticated
	}
	return id, nil
}

type empty struct{}

func (m *Module) listPlans(_ handler.Context, _ empty) handler.Response {
	return handler.JSON(m.plans.ListActivePlans())
}

func (m *Module) current(ctx handler.Context, _ empty) handler.Response {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	e, err := m.billing.CurrentEntitlement(ctx, tenantID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(e)
}

type trialResponse struct {
	SubscriptionID string           `json:"subscription_id"`
	PlanID         catalogue.PlanID `json:"plan_id"`
	TrialEndsAt    *time.Time       `json:"trial_ends_at"`
}

func (m *Module) activateTrial(ctx handler.Context, _ empty) handler.Response {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	sub, err := m.billing.ActivateTrial(ctx, tenantID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(trialResponse{
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		TrialEndsAt:    sub.TrialEndsAt,
	})
}

type checkoutRequest struct {
	PlanID catalogue.PlanID `json:"plan_id"`
}

func (m *Module) checkout(ctx handler.Context, req checkoutRequest) handler.Response {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	co, err := m.billing.CreateCheckoutForUpgrade(ctx, tenantID, req.PlanID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(co, handler.WithJSONStatus(http.StatusCreated))
}

type registrationRequest struct {
	TenantName string           `json:"tenant_name"`
	Slug       string           `json:"slug"`
	Email      string           `json:"email"`
	Password   string           `json:"password"`
	OwnerName  string           `json:"owner_name"`
	OwnerPhone string           `json:"owner_phone"`
	PlanID     catalogue.PlanID `json:"plan_id"`
}

func (r registrationRequest) registration() billing.Registration {
	return billing.Registration{
		TenantName: r.TenantName,
		Slug:       r.Slug,
		Email:      r.Email,
		Password:   r.Password,
		OwnerName:  r.OwnerName,
		OwnerPhone: r.OwnerPhone,
		PlanID:     r.PlanID,
	}
}

func (m *Module) checkoutForRegistration(ctx handler.Context, req registrationRequest) handler.Response {
	co, err := m.billing.CreateCheckoutForRegistration(ctx, req.registration())
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(co, handler.WithJSONStatus(http.StatusCreated))
}

type registerResponse struct {
	Tenant      *billing.Tenant `json:"tenant"`
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func (m *Module) register(ctx handler.Context, req registrationRequest) handler.Response {
	in := req.registration()
	in.PlanID = catalogue.PlanFree
	t, err := m.billing.RegisterFree(ctx, in)
	if err != nil {
		return handler.Fail(err)
	}
	token, exp, err := m.tokens.Issue(t.ID, jwt.RoleOwner, t.ID, t.OwnerEmail)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(registerResponse{
		Tenant:      t,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
	}, handler.WithJSONStatus(http.StatusCreated))
}

type pendingRequest struct {
	ID string `path:"pending_id"`
}

type pendingResponse struct {
	PendingID   string                `json:"pending_id"`
	Status      billing.PendingStatus `json:"status"`
	Slug        string                `json:"slug"`
	PlanID      catalogue.PlanID      `json:"plan_id"`
	PaymentID   string                `json:"payment_id"`
	CheckoutURL string                `json:"checkout_url,omitempty"`
	ExpiresAt   time.Time             `json:"expires_at"`
	TenantID    string                `json:"tenant_id,omitempty"`
}

// registrationStatus lets the front-end resume a paid signup. A pending
// registration still awaiting payment is confirmed with the gateway first.
func (m *Module) registrationStatus(ctx handler.Context, req pendingRequest) handler.Response {
	p, err := m.billing.GetPendingRegistration(ctx, req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	if p.Status == billing.PendingAwaitingPayment && p.CheckoutURL != "" {
		if _, err := m.billing.ConfirmPayment(ctx, p.PaymentID); err != nil && !errors.Is(err, billing.ErrGatewayUnavailable) {
			return handler.Fail(err)
		}
		if p, err = m.billing.GetPendingRegistration(ctx, req.ID); err != nil {
			return handler.Fail(err)
		}
	}
	resp := pendingResponse{
		PendingID: p.ID,
		Status:    p.Status,
		Slug:      p.Slug,
		PlanID:    p.PlanID,
		PaymentID: p.PaymentID,
		ExpiresAt: p.ExpiresAt,
		TenantID:  p.TenantID,
	}
	if p.Status == billing.PendingAwaitingPayment {
		resp.CheckoutURL = p.CheckoutURL
	}
	return handler.JSON(resp)
}

type cancelRequest struct {
	Immediate bool `query:"immediate"`
}

type cancelResponse struct {
	CancelAt  time.Time `json:"cancel_at"`
	Immediate bool      `json:"immediate"`
	Message   string    `json:"message"`
}

func (m *Module) cancel(ctx handler.Context, req cancelRequest) handler.Response {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	c, err := m.billing.Cancel(ctx, tenantID, req.Immediate)
	if err != nil {
		return handler.Fail(err)
	}
	msg := "subscription will end at the close of the current period"
	if c.Immediate {
		msg = "subscription cancelled, the store is now on the free plan"
	}
	return handler.JSON(cancelResponse{CancelAt: c.CancelAt, Immediate: c.Immediate, Message: msg})
}

type pageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (p pageRequest) page() billing.Page {
	return billing.Page{Limit: p.Limit, Offset: p.Offset}.Normalize()
}

func (m *Module) invoices(ctx handler.Context, req pageRequest) handler.Response {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	page := req.page()
	items, total, err := m.billing.ListInvoices(ctx, tenantID, page)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(items, handler.WithJSONMeta(map[string]any{
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	}))
}

type paymentRequest struct {
	ID string `path:"id"`
}

// paymentStatus polls the gateway for a pending payment of the tenant.
func (m *Module) paymentStatus(ctx handler.Context, req paymentRequest) handler.Response {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	p, err := m.billing.GetPayment(ctx, tenantID, req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	if p.Status == billing.PaymentPending {
		if p, err = m.billing.ConfirmPayment(ctx, p.ID); err != nil {
			return handler.Fail(err)
		}
	}
	return handler.JSON(p)
}

func (m *Module) cancelPayment(ctx handler.Context, req paymentRequest) handler.Response {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	p, err := m.billing.CancelCheckout(ctx, tenantID, req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(p)
}

func (m *Module) paymentQR(ctx handler.Context, req paymentRequest) handler.Response {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	p, err := m.billing.GetPayment(ctx, tenantID, req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	if p.Status != billing.PaymentPending || p.QRCode == "" {
		return handler.Fail(billing.ErrPaymentNotPending)
	}
	png, err := qrcode.PNG(p.QRCode, qrcode.DefaultSize)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.Blob("image/png", png, http.Header{"Cache-Control": {"no-store"}})
}
