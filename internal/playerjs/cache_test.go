package playerjs

import (
	"context"
	"testing"
	"time"
)

func TestTieredCache_BackfillsEarlierTiers(t *testing.T) {
	ctx := context.Background()
	near, far := NewMemoryCache(time.Hour), NewMemoryCache(time.Hour)
	far.Set(ctx, "k", &Script{URL: "k", Body: "body"})

	tiered := NewTieredCache(near, far)
	got, ok := tiered.Get(ctx, "k")
	if !ok || got.Body != "body" {
		t.Fatalf("Get() = %+v, %v, want body from far tier", got, ok)
	}
	if got, ok := near.Get(ctx, "k"); !ok || got.Body != "body" {
		t.Fatalf("near tier not backfilled: %+v, %v", got, ok)
	}
	if _, ok := tiered.Get(ctx, "missing"); ok {
		t.Fatal("Get(missing) reported a hit")
	}
}

func TestMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(20 * time.Millisecond)
	c.Set(ctx, "k", &Script{Body: "body"})
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("Get() missed a fresh entry")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("Get() returned an expired entry")
	}
}

func TestTieredCache_BackfillKeepsScriptExpiry(t *testing.T) {
	ctx := context.Background()
	near, far := NewMemoryCache(time.Hour), NewMemoryCache(time.Hour)
	far.Set(ctx, "k", &Script{URL: "k", Body: "body", ExpiresAt: time.Now().Add(50 * time.Millisecond)})

	tiered := NewTieredCache(near, far)
	if _, ok := tiered.Get(ctx, "k"); !ok {
		t.Fatal("Get() missed a live entry")
	}
	time.Sleep(100 * time.Millisecond)
	if got, ok := near.Get(ctx, "k"); ok {
		t.Fatalf("near tier served an expired script: %+v", got)
	}
	if _, ok := tiered.Get(ctx, "k"); ok {
		t.Fatal("tiered Get() returned an expired script")
	}
}

func TestMemoryCache_SkipsExpiredScripts(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	c.Set(ctx, "k", &Script{Body: "stale", ExpiresAt: time.Now().Add(-time.Second)})
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("Set() stored an already expired script")
	}
}
