package notifier

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/qrmenu/svc/billing"
)

type trialData struct {
	Tenant  string
	Plan    string
	EndsAt  string
	URL     string
	AppName string
}

type paymentData struct {
	Tenant    string
	Slug      string
	Plan      string
	FromPlan  string
	Amount    string
	OrderCode int64
	PeriodEnd string
	URL       string
	AppName   string
}

type cancellationData struct {
	Tenant    string
	Plan      string
	Immediate bool
	Effective string
	URL       string
	AppName   string
}

// htmlWriter keeps the first write error so components read top to bottom.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

// text writes s escaped.
func (h *htmlWriter) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlWriter) greeting(name string) {
	h.raw("<p>Hi ")
	h.text(name)
	h.raw(",</p>\n")
}

func (h *htmlWriter) link(href, label string) {
	h.raw(`<p><a href="`)
	h.text(href)
	h.raw(`">`)
	h.text(label)
	h.raw("</a></p>\n")
}

func (h *htmlWriter) footer(appName string) {
	h.raw("<p>")
	h.text(appName)
	h.raw("</p>")
}

func component(body func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		body(h)
		return h.err
	})
}

func trialActivatedEmail(d trialData) templ.Component {
	return component(func(h *htmlWriter) {
		h.greeting(d.Tenant)
		h.raw("<p>Your ")
		h.text(d.Plan)
		h.raw(" trial is active until ")
		h.text(d.EndsAt)
		h.raw(". All paid features are unlocked during the trial.</p>\n")
		h.link(d.URL, "Manage your subscription")
		h.footer(d.AppName)
	})
}

func trialExpiringEmail(d trialData) templ.Component {
	return component(func(h *htmlWriter) {
		h.greeting(d.Tenant)
		h.raw("<p>Your ")
		h.text(d.Plan)
		h.raw(" trial ends on ")
		h.text(d.EndsAt)
		h.raw(". After that your store moves to the Free plan.</p>\n")
		h.link(d.URL, "Upgrade now to keep your features")
		h.footer(d.AppName)
	})
}

func paymentSucceededEmail(d paymentData) templ.Component {
	return component(func(h *htmlWriter) {
		h.greeting(d.Tenant)
		h.raw("<p>We received your payment of ")
		h.text(d.Amount)
		h.raw(" (order ")
		h.raw(strconv.FormatInt(d.OrderCode, 10))
		h.raw(").</p>\n<p>Your store <b>")
		h.text(d.Slug)
		h.raw("</b> is ready on the ")
		h.text(d.Plan)
		h.raw(" plan until ")
		h.text(d.PeriodEnd)
		h.raw(".</p>\n")
		h.link(d.URL, "Open your dashboard")
		h.footer(d.AppName)
	})
}

func upgradeSucceededEmail(d paymentData) templ.Component {
	return component(func(h *htmlWriter) {
		h.greeting(d.Tenant)
		h.raw("<p>Your payment of ")
		h.text(d.Amount)
		h.raw(" (order ")
		h.raw(strconv.FormatInt(d.OrderCode, 10))
		h.raw(") was successful.</p>\n<p>You moved")
		if d.FromPlan != "" {
			h.raw(" from ")
			h.text(d.FromPlan)
		}
		h.raw(" to ")
		h.text(d.Plan)
		h.raw(". Paid until ")
		h.text(d.PeriodEnd)
		h.raw(".</p>\n")
		h.link(d.URL, "Open your dashboard")
		h.footer(d.AppName)
	})
}

func cancellationEmail(d cancellationData) templ.Component {
	return component(func(h *htmlWriter) {
		h.greeting(d.Tenant)
		h.raw("<p>Your ")
		h.text(d.Plan)
		if d.Immediate {
			h.raw(" subscription was cancelled and your store is now on the Free plan.</p>\n")
		} else {
			h.raw(" subscription stays active until ")
			h.text(d.Effective)
			h.raw(" and will not renew.</p>\n")
		}
		h.link(d.URL, "Manage your subscription")
		h.footer(d.AppName)
	})
}

func conflictEmail(c billing.ConflictNotice) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw("<p>A paid registration could not be turned into a store.</p>\n<ul>\n")
		for _, row := range [][2]string{
			{"pending", c.PendingID},
			{"payment", c.PaymentID},
			{"order code", strconv.FormatInt(c.OrderCode, 10)},
			{"slug", c.Slug},
			{"email", c.Email},
			{"reason", c.Reason},
		} {
			h.raw("<li>")
			h.text(row[0] + ": " + row[1])
			h.raw("</li>\n")
		}
		h.raw("</ul>\n<p>The payment is flagged for manual resolution.</p>")
	})
}
