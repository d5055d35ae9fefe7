package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Minute), mr
}

func TestGetSetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key := Key("2025-06-02", 5, []int64{100}, nil)
	if got := c.Get(ctx, key); got != "" {
		t.Fatalf("expected miss, got %q", got)
	}

	c.Set(ctx, key, `{"success":true}`)
	if got := c.Get(ctx, key); got != `{"success":true}` {
		t.Fatalf("cached body = %q", got)
	}
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	key := Key("2025-06-02", 5, nil, nil)
	c.Set(ctx, key, "body")
	mr.FastForward(2 * time.Minute)

	if got := c.Get(ctx, key); got != "" {
		t.Fatalf("expected expired entry, got %q", got)
	}
}

func TestInvalidateDateOnlyTouchesThatDate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	monday := Key("2025-06-02", 5, nil, nil)
	mondayOther := Key("2025-06-02", 7, []int64{1}, []int64{2})
	tuesday := Key("2025-06-03", 5, nil, nil)
	c.Set(ctx, monday, "a")
	c.Set(ctx, mondayOther, "b")
	c.Set(ctx, tuesday, "c")

	c.InvalidateDate(ctx, "2025-06-02")

	if c.Get(ctx, monday) != "" || c.Get(ctx, mondayOther) != "" {
		t.Error("monday entries should be invalidated")
	}
	if c.Get(ctx, tuesday) != "c" {
		t.Error("tuesday entry should survive")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	if got := c.Get(ctx, "k"); got != "" {
		t.Fatalf("nil cache Get = %q", got)
	}
	c.Set(ctx, "k", "v")
	c.InvalidateDate(ctx, "2025-06-02")
}

func TestKeyDistinguishesBundles(t *testing.T) {
	a := Key("2025-06-02", 5, []int64{1, 2}, nil)
	b := Key("2025-06-02", 5, []int64{1}, []int64{2})
	if a == b {
		t.Errorf("keys should differ: %q", a)
	}
}
