// Package gate authenticates requests and enforces plan features and
// resource quotas.
//
// Authenticate verifies the bearer token, loads the tenant's entitlement
// once per request and rejects writes of suspended tenants. RequireFeature
// and CheckQuota are route middleware built on the loaded entitlement.
// Super-admin tokens bypass every tenant check.
//
// CheckQuota is advisory: it answers before the handler runs. Resource
// creation that must never exceed the cap goes through Reserve, which
// re-counts and inserts under the tenant lock:
//
//	err := g.Reserve(ctx, tenantID, billing.ResourceTables, func(ctx context.Context) error {
//		return tables.Insert(ctx, t)
//	})
package gate
