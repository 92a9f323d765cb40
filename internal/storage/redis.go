package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scannedKeyPrefix = "scanned:"

// ScanCache tracks recently scanned domains so routine re-scan requests
// can be skipped unless forced.
type ScanCache struct {
	client *redis.Client
}

func NewScanCache(addr string) *ScanCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &ScanCache{client: rdb}
}

func (c *ScanCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func scannedKey(domain string) string {
	h := sha256.Sum256([]byte(domain))
	return fmt.Sprintf("%s%s", scannedKeyPrefix, hex.EncodeToString(h[:]))
}

// MarkScanned records a completed scan with a TTL.
func (c *ScanCache) MarkScanned(ctx context.Context, domain string, ttl time.Duration) error {
	return c.client.Set(ctx, scannedKey(domain), "1", ttl).Err()
}

// IsRecentlyScanned reports whether the domain was scanned within the
// TTL window.
func (c *ScanCache) IsRecentlyScanned(ctx context.Context, domain string) (bool, error) {
	val, err := c.client.Exists(ctx, scannedKey(domain)).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}

// RemoveScanned clears the marker, used for force re-scans.
func (c *ScanCache) RemoveScanned(ctx context.Context, domain string) error {
	return c.client.Del(ctx, scannedKey(domain)).Err()
}
