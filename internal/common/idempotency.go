package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem rejects duplicate submissions of write endpoints (checkout, pay-downs,
// financing requests) keyed by the client's Idempotency-Key header.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// The key is scoped to method and path so the same client key may be reused
// across different endpoints without colliding.
func idemKey(r *http.Request, header string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s %s %s", r.Method, r.URL.Path, header)))
	return "sellsi:idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints. Requests
// without the header pass through untouched.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := idemKey(r, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		defer func() {
			// Refresh the TTL with a fresh context so the key survives a
			// handler panic and still expires on schedule.
			_ = i.R.Expire(context.Background(), key, i.ttl()).Err()
		}()
		next.ServeHTTP(w, r)
	})
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 10 * time.Minute
	}
	return i.TTL
}
