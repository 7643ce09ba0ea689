package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Runs against a real server only when REDIS_ADDR is set.
func TestRedisTokenBlacklist(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	bl := NewRedisTokenBlacklist(client)
	jti := uuid.NewString()

	revoked, err := bl.IsBlacklisted(ctx, jti)
	if err != nil || revoked {
		t.Fatalf("fresh jti reported revoked=%v err=%v", revoked, err)
	}
	if err := bl.Add(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	revoked, err = bl.IsBlacklisted(ctx, jti)
	if err != nil || !revoked {
		t.Fatalf("expected jti to be revoked, got %v err=%v", revoked, err)
	}

	expired := uuid.NewString()
	if err := bl.Add(ctx, expired, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Add expired: %v", err)
	}
	if revoked, _ := bl.IsBlacklisted(ctx, expired); revoked {
		t.Fatalf("already expired tokens should not be stored")
	}
}
