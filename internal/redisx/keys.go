package redisx

import "time"

const (
	// Bearer sessions: session:{token} -> {"user_id":"...","role":"..."}
	KeySession = "session:%s"

	// Order status cache: order_status:{order_ref} -> order JSON
	KeyOrderStatus = "order_status:%s"

	// Newest-first feed of recent order refs, LPUSH + LTRIM.
	KeyRecentOrders = "orders:recent"

	// Dedup for event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

const RecentOrdersMax = 100

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
