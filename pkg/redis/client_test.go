package redis

import (
	"testing"
	"time"

	"github.com/revlytic/revlytic-backend/pkg/config"
)

func TestOptionsFromConfigRequiresURL(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url")
	}
}

func TestOptionsFromConfigAppliesDefaults(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:          "redis://localhost:6379/2",
		PoolSize:     7,
		MinIdleConns: 3,
		DialTimeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.DB != 2 {
		t.Fatalf("expected db 2 from url, got %d", opts.DB)
	}
	if opts.PoolSize != 7 {
		t.Fatalf("expected pool size 7, got %d", opts.PoolSize)
	}
	if opts.DialTimeout != 2*time.Second {
		t.Fatalf("expected dial timeout applied, got %v", opts.DialTimeout)
	}
}

func TestLockKeyNamespacing(t *testing.T) {
	c := &Client{}
	if got := c.LockKey("sync-worker"); got != "rvl:lock:sync-worker" {
		t.Fatalf("unexpected lock key %q", got)
	}
	if got := c.LockKey(" "); got != "rvl:lock" {
		t.Fatalf("expected empty scopes dropped, got %q", got)
	}
}
