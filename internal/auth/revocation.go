package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationSet is the Redis-backed set of revoked session token ids (jti).
// Authenticate verifies a session token's signature and expiry first, then
// tests the jti from the verified claims against this set, so a revoked
// token is rejected even while it is still unexpired.
type RevocationSet struct {
	redis *redis.Client
}

func NewRevocationSet(rdb *redis.Client) *RevocationSet {
	return &RevocationSet{redis: rdb}
}

func revocationKey(jti string) string {
	return fmt.Sprintf("revoked_token:%s", jti)
}

// Revoke marks jti revoked until its natural expiry, after which the key
// self-evicts and need not be tracked further.
func (rs *RevocationSet) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := rs.redis.Set(ctx, revocationKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked.
func (rs *RevocationSet) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := rs.redis.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}
