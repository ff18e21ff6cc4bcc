package billing

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// MemoryStore is an in-process Store. It enforces the same uniqueness and
// conditional-update rules as the MongoDB store.
type MemoryStore struct {
	mu            sync.RWMutex
	tenants       map[string]Tenant
	subscriptions map[string]Subscription
	pending       map[string]PendingRegistration
	payments      map[string]Payment
	now           func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:       make(map[string]Tenant),
		subscriptions: make(map[string]Subscription),
		pending:       make(map[string]PendingRegistration),
		payments:      make(map[string]Payment),
		now:           time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreateTenant(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.tenants {
		if other.Slug == t.Slug {
			return ErrSlugTaken
		}
		if other.OwnerEmail == t.OwnerEmail {
			return ErrEmailTaken
		}
	}
	m.tenants[t.ID] = cloneTenant(*t)
	return nil
}

func (m *MemoryStore) UpdateTenant(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; !ok {
		return ErrTenantNotFound
	}
	m.tenants[t.ID] = cloneTenant(*t)
	return nil
}

func (m *MemoryStore) GetTenant(_ context.Context, id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	out := cloneTenant(t)
	return &out, nil
}

func (m *MemoryStore) GetTenantByEmail(_ context.Context, email string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tenants {
		if t.OwnerEmail == email {
			out := cloneTenant(t)
			return &out, nil
		}
	}
	return nil, ErrTenantNotFound
}

func (m *MemoryStore) TenantTaken(_ context.Context, slug, email string) (bool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var slugTaken, emailTaken bool
	for _, t := range m.tenants {
		slugTaken = slugTaken || t.Slug == slug
		emailTaken = emailTaken || t.OwnerEmail == email
	}
	return slugTaken, emailTaken, nil
}

func (m *MemoryStore) ListTenants(_ context.Context, f TenantFilter) ([]Tenant, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	search := strings.ToLower(f.Search)
	var out []Tenant
	for _, t := range m.tenants {
		if f.Suspended != nil && t.IsSuspended != *f.Suspended {
			continue
		}
		if f.PlanID != "" && t.Facet.CurrentPlanID != f.PlanID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Name), search) &&
			!strings.Contains(t.Slug, search) && !strings.Contains(t.OwnerEmail, search) {
			continue
		}
		out = append(out, cloneTenant(t))
	}
	slices.SortFunc(out, func(a, b Tenant) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, f.Page)
}

func (m *MemoryStore) CountTenants(_ context.Context, suspended *bool) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, t := range m.tenants {
		if suspended == nil || t.IsSuspended == *suspended {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateSubscription(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[s.ID] = cloneSubscription(*s)
	return nil
}

func (m *MemoryStore) UpdateSubscription(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[s.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	m.subscriptions[s.ID] = cloneSubscription(*s)
	return nil
}

func (m *MemoryStore) GetSubscription(_ context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	out := cloneSubscription(s)
	return &out, nil
}

func (m *MemoryStore) CurrentSubscription(_ context.Context, tenantID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cur *Subscription
	for _, s := range m.subscriptions {
		if s.TenantID != tenantID || !s.Status.Live() {
			continue
		}
		if cur == nil || s.CreatedAt.After(cur.CreatedAt) {
			c := cloneSubscription(s)
			cur = &c
		}
	}
	if cur == nil {
		return nil, ErrSubscriptionNotFound
	}
	return cur, nil
}

func (m *MemoryStore) DueSubscriptions(_ context.Context, before time.Time, limit int) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subscription
	for _, s := range m.subscriptions {
		if s.Status.Live() && s.PlanID != catalogue.PlanFree && s.PeriodEnd.Before(before) {
			out = append(out, cloneSubscription(s))
		}
	}
	slices.SortFunc(out, func(a, b Subscription) int { return a.PeriodEnd.Compare(b.PeriodEnd) })
	return truncate(out, limit), nil
}

func (m *MemoryStore) TrialsEndingBefore(_ context.Context, before time.Time, limit int) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subscription
	for _, s := range m.subscriptions {
		if s.Status == StatusTrial && s.TrialReminderSentAt == nil && s.TrialEndsAt != nil && s.TrialEndsAt.Before(before) {
			out = append(out, cloneSubscription(s))
		}
	}
	slices.SortFunc(out, func(a, b Subscription) int { return a.TrialEndsAt.Compare(*b.TrialEndsAt) })
	return truncate(out, limit), nil
}

func (m *MemoryStore) ListSubscriptions(_ context.Context, f SubscriptionFilter) ([]Subscription, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subscription
	for _, s := range m.subscriptions {
		if f.TenantID != "" && s.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.PlanID != "" && s.PlanID != f.PlanID {
			continue
		}
		out = append(out, cloneSubscription(s))
	}
	slices.SortFunc(out, func(a, b Subscription) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, f.Page)
}

func (m *MemoryStore) CountSubscriptions(_ context.Context, status SubscriptionStatus) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, s := range m.subscriptions {
		if status == "" || s.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreatePending(_ context.Context, p *PendingRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[p.ID] = clonePending(*p)
	return nil
}

func (m *MemoryStore) UpdatePending(_ context.Context, p *PendingRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[p.ID]; !ok {
		return ErrPendingNotFound
	}
	m.pending[p.ID] = clonePending(*p)
	return nil
}

func (m *MemoryStore) GetPending(_ context.Context, id string) (*PendingRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pending[id]
	if !ok {
		return nil, ErrPendingNotFound
	}
	out := clonePending(p)
	return &out, nil
}

func (m *MemoryStore) PendingReserved(_ context.Context, slug, email string, now time.Time) (bool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var slugTaken, emailTaken bool
	for _, p := range m.pending {
		if !p.Reserves(now) {
			continue
		}
		slugTaken = slugTaken || p.Slug == slug
		emailTaken = emailTaken || p.Email == email
	}
	return slugTaken, emailTaken, nil
}

func (m *MemoryStore) ExpiredPending(_ context.Context, before time.Time, limit int) ([]PendingRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []PendingRegistration
	for _, p := range m.pending {
		if p.Status == PendingAwaitingPayment && p.ExpiresAt.Before(before) {
			out = append(out, clonePending(p))
		}
	}
	slices.SortFunc(out, func(a, b PendingRegistration) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	return truncate(out, limit), nil
}

func (m *MemoryStore) CreatePayment(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.payments {
		if other.OrderCode == p.OrderCode {
			return ErrDuplicateOrderCode
		}
	}
	m.payments[p.ID] = clonePayment(*p)
	return nil
}

func (m *MemoryStore) GetPayment(_ context.Context, id string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	out := clonePayment(p)
	return &out, nil
}

func (m *MemoryStore) GetPaymentByOrderCode(_ context.Context, orderCode int64) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.OrderCode == orderCode {
			out := clonePayment(p)
			return &out, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (m *MemoryStore) SetPaymentLink(_ context.Context, id string, link LinkInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.LinkID, p.CheckoutURL, p.QRCode = link.LinkID, link.CheckoutURL, link.QRCode
	p.UpdatedAt = m.now()
	m.payments[id] = p
	return nil
}

func (m *MemoryStore) MarkPaymentPaid(_ context.Context, id, transactionID string, paidAt time.Time, gatewayPaidAt *time.Time) (*Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, false, ErrPaymentNotFound
	}
	switch p.Status {
	case PaymentPending, PaymentFailed, PaymentExpired:
	default:
		out := clonePayment(p)
		return &out, false, nil
	}
	p.Status = PaymentPaid
	p.TransactionID = transactionID
	p.PaidAt = &paidAt
	p.Metadata.GatewayPaidAt = gatewayPaidAt
	p.UpdatedAt = paidAt
	m.payments[id] = p
	out := clonePayment(p)
	return &out, true, nil
}

func (m *MemoryStore) ClosePayment(_ context.Context, id string, status PaymentStatus, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, ErrPaymentNotFound
	}
	if p.Status != PaymentPending {
		return false, nil
	}
	p.Status = status
	p.Metadata.FailureReason = reason
	p.UpdatedAt = m.now()
	m.payments[id] = p
	return true, nil
}

func (m *MemoryStore) LinkPayment(_ context.Context, id, tenantID, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.TenantID, p.SubscriptionID = tenantID, subscriptionID
	p.UpdatedAt = m.now()
	m.payments[id] = p
	return nil
}

func (m *MemoryStore) FlagPaymentResolution(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.Metadata.ResolutionRequired = true
	p.Metadata.ResolutionReason = reason
	p.UpdatedAt = m.now()
	m.payments[id] = p
	return nil
}

func (m *MemoryStore) ListPayments(_ context.Context, f PaymentFilter) ([]Payment, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Payment
	for _, p := range m.payments {
		if f.TenantID != "" && p.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.PaidFrom != nil && (p.PaidAt == nil || p.PaidAt.Before(*f.PaidFrom)) {
			continue
		}
		if f.PaidTo != nil && (p.PaidAt == nil || !p.PaidAt.Before(*f.PaidTo)) {
			continue
		}
		out = append(out, clonePayment(p))
	}
	slices.SortFunc(out, func(a, b Payment) int {
		return cmp.Or(compareTimePtrDesc(a.PaidAt, b.PaidAt), b.CreatedAt.Compare(a.CreatedAt))
	})
	return paginate(out, f.Page)
}

func (m *MemoryStore) PaidBetween(_ context.Context, from, to time.Time) ([]Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Payment
	for _, p := range m.payments {
		if p.Status == PaymentPaid && p.PaidAt != nil && !p.PaidAt.Before(from) && p.PaidAt.Before(to) {
			out = append(out, clonePayment(p))
		}
	}
	slices.SortFunc(out, func(a, b Payment) int { return a.PaidAt.Compare(*b.PaidAt) })
	return out, nil
}

func (m *MemoryStore) CountPayments(_ context.Context, status PaymentStatus) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, p := range m.payments {
		if status == "" || p.Status == status {
			n++
		}
	}
	return n, nil
}

func compareTimePtrDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return b.Compare(*a)
}

func paginate[T any](items []T, page Page) ([]T, int64, error) {
	page = page.Normalize()
	total := int64(len(items))
	if page.Offset >= len(items) {
		return []T{}, total, nil
	}
	end := min(page.Offset+page.Limit, len(items))
	return items[page.Offset:end], total, nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func cloneTenant(t Tenant) Tenant {
	t.PasswordHash = slices.Clone(t.PasswordHash)
	t.Facet.MaxResourceUnits = clonePtr(t.Facet.MaxResourceUnits)
	t.SuspendedAt = clonePtr(t.SuspendedAt)
	return t
}

func cloneSubscription(s Subscription) Subscription {
	s.TrialEndsAt = clonePtr(s.TrialEndsAt)
	s.MaxResourceUnits = clonePtr(s.MaxResourceUnits)
	s.TrialReminderSentAt = clonePtr(s.TrialReminderSentAt)
	s.CancelledAt = clonePtr(s.CancelledAt)
	return s
}

func clonePending(p PendingRegistration) PendingRegistration {
	p.PasswordHash = slices.Clone(p.PasswordHash)
	p.MaterializedAt = clonePtr(p.MaterializedAt)
	return p
}

func clonePayment(p Payment) Payment {
	p.PaidAt = clonePtr(p.PaidAt)
	p.Metadata.GatewayPaidAt = clonePtr(p.Metadata.GatewayPaidAt)
	if p.Metadata.Extra != nil {
		extra := make(map[string]string, len(p.Metadata.Extra))
		for k, v := range p.Metadata.Extra {
			extra[k] = v
		}
		p.Metadata.Extra = extra
	}
	return p
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
