package redisx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

type IdemState int

const (
	// IdemNew means the caller now owns the key and must Complete or Abort it.
	IdemNew IdemState = iota
	// IdemPending means another request with the same key is still running.
	IdemPending
	// IdemDone means a response was stored and should be replayed.
	IdemDone
	// IdemMismatch means the key was first used for a different request.
	IdemMismatch
)

const pendingMarker = "\x00pending"

func idemKey(userID int64, key string) string { return fmt.Sprintf(KeyIdemCheckout, userID, key) }

// RequestFingerprint identifies a request body under an idempotency key.
func RequestFingerprint(parts ...[]byte) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// stored values are "{fingerprint}|{pending marker or response body}"
func idemValue(fingerprint string, payload []byte) string {
	return fingerprint + "|" + string(payload)
}

// BeginIdempotent claims key for userID or returns the stored response. A key
// reused with a different fingerprint reports IdemMismatch.
func (c *Cache) BeginIdempotent(ctx context.Context, userID int64, key, fingerprint string) (IdemState, []byte, error) {
	k := idemKey(userID, key)
	ok, err := c.RDB.SetNX(ctx, k, idemValue(fingerprint, []byte(pendingMarker)), TTLIdemPending).Result()
	if err != nil {
		return IdemNew, nil, err
	}
	if ok {
		return IdemNew, nil, nil
	}
	v, err := c.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; treat as a fresh claim
		return c.BeginIdempotent(ctx, userID, key, fingerprint)
	}
	if err != nil {
		return IdemNew, nil, err
	}
	fp, payload, _ := strings.Cut(v, "|")
	if fp != fingerprint {
		return IdemMismatch, nil, nil
	}
	if payload == pendingMarker {
		return IdemPending, nil, nil
	}
	return IdemDone, []byte(payload), nil
}

func (c *Cache) CompleteIdempotent(ctx context.Context, userID int64, key, fingerprint string, body []byte) error {
	return c.RDB.Set(ctx, idemKey(userID, key), idemValue(fingerprint, body), TTLIdempotency).Err()
}

// AbortIdempotent releases the claim so the request can be retried.
func (c *Cache) AbortIdempotent(ctx context.Context, userID int64, key string) error {
	return c.RDB.Del(ctx, idemKey(userID, key)).Err()
}
