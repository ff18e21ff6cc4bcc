// Package billing implements the entitlement state machine of the
// restaurant subscription core: trials, paid upgrades and renewals, paid
// registrations that materialize into tenants, cancellation, expiry
// sweeps and the read-only access view used by the feature and quota gate.
//
// The Subscription row is the source of truth. The Facet on the Tenant is
// a cache rewritten in the same per-tenant critical section as the
// subscription it mirrors. Payments flip from pending to paid exactly once
// through a conditional store update; that flip is the idempotency key for
// webhook replays and polling confirmations.
//
// Gateway and email I/O never happens while a lock is held.
package billing
