package redisx

import "time"

const (
	// Idempotent checkout: idem:checkout:{user_id}:{key} -> response body
	KeyIdemCheckout = "idem:checkout:%d:%s"

	// Cached order detail: order:{order_id} -> order json with lines
	KeyOrderDetail = "order:%d"

	// Product listing generation, bumped whenever stock or catalog changes
	KeyProductsVersion = "products:version"

	// Cached product page: products:list:{version}:{xxhash(params)}
	KeyProductList = "products:list:%d:%016x"

	// Dedup event processing: dedup:{group}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = time.Minute
	TTLOrderDetail = 5 * time.Minute
	TTLProductList = time.Minute
	TTLDedup       = 48 * time.Hour
)
