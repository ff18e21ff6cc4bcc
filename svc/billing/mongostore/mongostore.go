// Package mongostore implements billing.Store on MongoDB. Uniqueness of
// tenant slug and owner email and of gateway order codes is enforced by
// unique indexes; the pending to paid flip of a payment is a conditional
// FindOneAndUpdate.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/qrmenu/svc/billing"
	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// Collection names.
const (
	ColTenants       = "tenants"
	ColSubscriptions = "subscriptions"
	ColPending       = "pending_registrations"
	ColPayments      = "payments"
)

const (
	idxTenantSlug    = "tenant_slug_unique"
	idxTenantEmail   = "tenant_owner_email_unique"
	idxPaymentCode   = "payment_order_code_unique"
	idxSubTenant     = "subscription_tenant"
	idxPaymentPaidAt = "payment_paid_at"
)

var liveStatuses = bson.A{string(billing.StatusTrial), string(billing.StatusActive)}

// Store is a MongoDB billing store.
type Store struct {
	tenants       *mongo.Collection
	subscriptions *mongo.Collection
	pending       *mongo.Collection
	payments      *mongo.Collection
	now           func() time.Time
}

var _ billing.Store = (*Store)(nil)

// New creates a store over db. Indexes must be created separately with
// Indexes and mongo.EnsureIndexes.
func New(db *mongo.Database) *Store {
	return &Store{
		tenants:       db.Collection(ColTenants),
		subscriptions: db.Collection(ColSubscriptions),
		pending:       db.Collection(ColPending),
		payments:      db.Collection(ColPayments),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Indexes returns the index models the billing collections require.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		ColTenants: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName(idxTenantSlug)},
			{Keys: bson.D{{Key: "owner_email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(idxTenantEmail)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		ColSubscriptions: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName(idxSubTenant)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "period_end", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "trial_ends_at", Value: 1}}},
		},
		ColPending: {
			{Keys: bson.D{{Key: "slug", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		},
		ColPayments: {
			{Keys: bson.D{{Key: "gateway_order_code", Value: 1}}, Options: options.Index().SetUnique(true).SetName(idxPaymentCode)},
			{Keys: bson.D{{Key: "paid_at", Value: -1}}, Options: options.Index().SetName(idxPaymentPaidAt)},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "paid_at", Value: -1}}},
		},
	}
}

// ==================== Tenants ====================

func (s *Store) CreateTenant(ctx context.Context, t *billing.Tenant) error {
	if _, err := s.tenants.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), idxTenantEmail) {
				return billing.ErrEmailTaken
			}
			return billing.ErrSlugTaken
		}
		return fmt.Errorf("mongostore: create tenant: %w", err)
	}
	return nil
}

func (s *Store) UpdateTenant(ctx context.Context, t *billing.Tenant) error {
	return s.replace(ctx, s.tenants, t.ID, t, billing.ErrTenantNotFound, "update tenant")
}

func (s *Store) GetTenant(ctx context.Context, id string) (*billing.Tenant, error) {
	return findOne[billing.Tenant](ctx, s.tenants, bson.M{"_id": id}, billing.ErrTenantNotFound, "get tenant")
}

func (s *Store) GetTenantByEmail(ctx context.Context, email string) (*billing.Tenant, error) {
	return findOne[billing.Tenant](ctx, s.tenants, bson.M{"owner_email": email}, billing.ErrTenantNotFound, "get tenant by email")
}

func (s *Store) TenantTaken(ctx context.Context, slug, email string) (bool, bool, error) {
	found, err := findAll[billing.Tenant](ctx, s.tenants,
		bson.M{"$or": bson.A{bson.M{"slug": slug}, bson.M{"owner_email": email}}},
		options.Find().SetProjection(bson.M{"slug": 1, "owner_email": 1}).SetLimit(2),
	)
	if err != nil {
		return false, false, fmt.Errorf("mongostore: tenant taken: %w", err)
	}
	var slugTaken, emailTaken bool
	for _, t := range found {
		slugTaken = slugTaken || t.Slug == slug
		emailTaken = emailTaken || t.OwnerEmail == email
	}
	return slugTaken, emailTaken, nil
}

func (s *Store) ListTenants(ctx context.Context, f billing.TenantFilter) ([]billing.Tenant, int64, error) {
	filter := bson.M{}
	if f.Suspended != nil {
		filter["is_suspended"] = *f.Suspended
	}
	if f.PlanID != "" {
		filter["entitlement.current_plan_id"] = f.PlanID
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		rx := bson.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		filter["$or"] = bson.A{bson.M{"name": rx}, bson.M{"slug": rx}, bson.M{"owner_email": rx}}
	}
	return page[billing.Tenant](ctx, s.tenants, filter, bson.D{{Key: "created_at", Value: -1}}, f.Page, "list tenants")
}

func (s *Store) CountTenants(ctx context.Context, suspended *bool) (int64, error) {
	filter := bson.M{}
	if suspended != nil {
		filter["is_suspended"] = *suspended
	}
	return count(ctx, s.tenants, filter, "count tenants")
}

// ==================== Subscriptions ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	if _, err := s.subscriptions.InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("mongostore: create subscription: %w", err)
	}
	return nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *billing.Subscription) error {
	return s.replace(ctx, s.subscriptions, sub.ID, sub, billing.ErrSubscriptionNotFound, "update subscription")
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	return findOne[billing.Subscription](ctx, s.subscriptions, bson.M{"_id": id}, billing.ErrSubscriptionNotFound, "get subscription")
}

func (s *Store) CurrentSubscription(ctx context.Context, tenantID string) (*billing.Subscription, error) {
	return findOne[billing.Subscription](ctx, s.subscriptions,
		bson.M{"tenant_id": tenantID, "status": bson.M{"$in": liveStatuses}},
		billing.ErrSubscriptionNotFound, "current subscription",
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
}

func (s *Store) DueSubscriptions(ctx context.Context, before time.Time, limit int) ([]billing.Subscription, error) {
	out, err := findAll[billing.Subscription](ctx, s.subscriptions,
		bson.M{
			"status":     bson.M{"$in": liveStatuses},
			"plan_id":    bson.M{"$ne": catalogue.PlanFree},
			"period_end": bson.M{"$lt": before},
		},
		options.Find().SetSort(bson.D{{Key: "period_end", Value: 1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: due subscriptions: %w", err)
	}
	return out, nil
}

func (s *Store) TrialsEndingBefore(ctx context.Context, before time.Time, limit int) ([]billing.Subscription, error) {
	out, err := findAll[billing.Subscription](ctx, s.subscriptions,
		bson.M{
			"status":                 billing.StatusTrial,
			"trial_reminder_sent_at": bson.M{"$exists": false},
			"trial_ends_at":          bson.M{"$lt": before},
		},
		options.Find().SetSort(bson.D{{Key: "trial_ends_at", Value: 1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: trials ending: %w", err)
	}
	return out, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, f billing.SubscriptionFilter) ([]billing.Subscription, int64, error) {
	filter := bson.M{}
	if f.TenantID != "" {
		filter["tenant_id"] = f.TenantID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.PlanID != "" {
		filter["plan_id"] = f.PlanID
	}
	return page[billing.Subscription](ctx, s.subscriptions, filter, bson.D{{Key: "created_at", Value: -1}}, f.Page, "list subscriptions")
}

func (s *Store) CountSubscriptions(ctx context.Context, status billing.SubscriptionStatus) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return count(ctx, s.subscriptions, filter, "count subscriptions")
}

// ==================== Pending registrations ====================

func (s *Store) CreatePending(ctx context.Context, p *billing.PendingRegistration) error {
	if _, err := s.pending.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("mongostore: create pending registration: %w", err)
	}
	return nil
}

func (s *Store) UpdatePending(ctx context.Context, p *billing.PendingRegistration) error {
	return s.replace(ctx, s.pending, p.ID, p, billing.ErrPendingNotFound, "update pending registration")
}

func (s *Store) GetPending(ctx context.Context, id string) (*billing.PendingRegistration, error) {
	return findOne[billing.PendingRegistration](ctx, s.pending, bson.M{"_id": id}, billing.ErrPendingNotFound, "get pending registration")
}

func (s *Store) PendingReserved(ctx context.Context, slug, email string, now time.Time) (bool, bool, error) {
	found, err := findAll[billing.PendingRegistration](ctx, s.pending,
		bson.M{
			"$or": bson.A{bson.M{"slug": slug}, bson.M{"email": email}},
			"status": bson.M{"$in": bson.A{
				string(billing.PendingAwaitingPayment),
				string(billing.PendingPaymentSettled),
			}},
		},
		options.Find().SetProjection(bson.M{"password_hash": 0}),
	)
	if err != nil {
		return false, false, fmt.Errorf("mongostore: pending reserved: %w", err)
	}
	var slugTaken, emailTaken bool
	for _, p := range found {
		if !p.Reserves(now) {
			continue
		}
		slugTaken = slugTaken || p.Slug == slug
		emailTaken = emailTaken || p.Email == email
	}
	return slugTaken, emailTaken, nil
}

func (s *Store) ExpiredPending(ctx context.Context, before time.Time, limit int) ([]billing.PendingRegistration, error) {
	out, err := findAll[billing.PendingRegistration](ctx, s.pending,
		bson.M{"status": billing.PendingAwaitingPayment, "expires_at": bson.M{"$lt": before}},
		options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: expired pending registrations: %w", err)
	}
	return out, nil
}

// ==================== Payments ====================

func (s *Store) CreatePayment(ctx context.Context, p *billing.Payment) error {
	if _, err := s.payments.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return billing.ErrDuplicateOrderCode
		}
		return fmt.Errorf("mongostore: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	return findOne[billing.Payment](ctx, s.payments, bson.M{"_id": id}, billing.ErrPaymentNotFound, "get payment")
}

func (s *Store) GetPaymentByOrderCode(ctx context.Context, orderCode int64) (*billing.Payment, error) {
	return findOne[billing.Payment](ctx, s.payments, bson.M{"gateway_order_code": orderCode}, billing.ErrPaymentNotFound, "get payment by order code")
}

func (s *Store) SetPaymentLink(ctx context.Context, id string, link billing.LinkInfo) error {
	return s.set(ctx, s.payments, bson.M{"_id": id}, bson.M{
		"gateway_link_id": link.LinkID,
		"checkout_url":    link.CheckoutURL,
		"qr_code":         link.QRCode,
	}, billing.ErrPaymentNotFound, "set payment link")
}

func (s *Store) MarkPaymentPaid(ctx context.Context, id, transactionID string, paidAt time.Time, gatewayPaidAt *time.Time) (*billing.Payment, bool, error) {
	set := bson.M{
		"status":                 billing.PaymentPaid,
		"gateway_transaction_id": transactionID,
		"paid_at":                paidAt,
		"updated_at":             paidAt,
	}
	if gatewayPaidAt != nil {
		set["metadata.gateway_paid_at"] = *gatewayPaidAt
	}
	var p billing.Payment
	err := s.payments.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": bson.A{
			string(billing.PaymentPending),
			string(billing.PaymentFailed),
			string(billing.PaymentExpired),
		}}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err == nil {
		return &p, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("mongostore: mark payment paid: %w", err)
	}
	cur, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return cur, false, nil
}

func (s *Store) ClosePayment(ctx context.Context, id string, status billing.PaymentStatus, reason string) (bool, error) {
	res, err := s.payments.UpdateOne(ctx,
		bson.M{"_id": id, "status": billing.PaymentPending},
		bson.M{"$set": bson.M{
			"status":                  status,
			"metadata.failure_reason": reason,
			"updated_at":              s.now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("mongostore: close payment: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	if _, err := s.GetPayment(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) LinkPayment(ctx context.Context, id, tenantID, subscriptionID string) error {
	return s.set(ctx, s.payments, bson.M{"_id": id}, bson.M{
		"tenant_id":       tenantID,
		"subscription_id": subscriptionID,
	}, billing.ErrPaymentNotFound, "link payment")
}

func (s *Store) FlagPaymentResolution(ctx context.Context, id, reason string) error {
	return s.set(ctx, s.payments, bson.M{"_id": id}, bson.M{
		"metadata.resolution_required": true,
		"metadata.resolution_reason":   reason,
	}, billing.ErrPaymentNotFound, "flag payment")
}

func (s *Store) ListPayments(ctx context.Context, f billing.PaymentFilter) ([]billing.Payment, int64, error) {
	filter := bson.M{}
	if f.TenantID != "" {
		filter["tenant_id"] = f.TenantID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	paidAt := bson.M{}
	if f.PaidFrom != nil {
		paidAt["$gte"] = *f.PaidFrom
	}
	if f.PaidTo != nil {
		paidAt["$lt"] = *f.PaidTo
	}
	if len(paidAt) > 0 {
		filter["paid_at"] = paidAt
	}
	sort := bson.D{{Key: "paid_at", Value: -1}, {Key: "created_at", Value: -1}}
	return page[billing.Payment](ctx, s.payments, filter, sort, f.Page, "list payments")
}

func (s *Store) PaidBetween(ctx context.Context, from, to time.Time) ([]billing.Payment, error) {
	out, err := findAll[billing.Payment](ctx, s.payments,
		bson.M{"status": billing.PaymentPaid, "paid_at": bson.M{"$gte": from, "$lt": to}},
		options.Find().SetSort(bson.D{{Key: "paid_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: paid between: %w", err)
	}
	return out, nil
}

func (s *Store) CountPayments(ctx context.Context, status billing.PaymentStatus) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return count(ctx, s.payments, filter, "count payments")
}

// ==================== Helpers ====================

func (s *Store) replace(ctx context.Context, coll *mongo.Collection, id string, doc any, notFound error, op string) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return fmt.Errorf("mongostore: %s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func (s *Store) set(ctx context.Context, coll *mongo.Collection, filter, fields bson.M, notFound error, op string) error {
	fields["updated_at"] = s.now()
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("mongostore: %s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, notFound error, op string, opts ...options.Lister[options.FindOneOptions]) (*T, error) {
	var v T
	if err := coll.FindOne(ctx, filter, opts...).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, fmt.Errorf("mongostore: %s: %w", op, err)
	}
	return &v, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts *options.FindOptionsBuilder) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func page[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, p billing.Page, op string) ([]T, int64, error) {
	p = p.Normalize()
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongostore: %s: %w", op, err)
	}
	out, err := findAll[T](ctx, coll, filter,
		options.Find().SetSort(sort).SetSkip(int64(p.Offset)).SetLimit(int64(p.Limit)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("mongostore: %s: %w", op, err)
	}
	return out, total, nil
}

func count(ctx context.Context, coll *mongo.Collection, filter bson.M, op string) (int64, error) {
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongostore: %s: %w", op, err)
	}
	return n, nil
}

// ResourceCounter counts the documents of collection owned by a tenant.
// It backs quota checks for resources stored by other services, such as
// restaurant tables.
func ResourceCounter(db *mongo.Database, collection string) billing.Counter {
	coll := db.Collection(collection)
	return func(ctx context.Context, tenantID string) (int64, error) {
		return count(ctx, coll, bson.M{"tenant_id": tenantID}, "count "+collection)
	}
}
