package redisx

import "time"

const (
	// Cached entitlement: entitlement:{enrollment_id} -> JSON entitlement.Result
	KeyEntitlement = "entitlement:%s"

	// Cache generation, bumped on every invalidation: entitlement:gen:{enrollment_id} -> counter
	KeyEntitlementGen = "entitlement:gen:%s"

	// Payment idempotency shortcut: idem:payment:{external_id} -> payment_id
	KeyIdemPayment = "idem:payment:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLEntitlement = 5 * time.Minute
	TTLGeneration  = 24 * time.Hour
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
