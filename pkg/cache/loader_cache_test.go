package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewLoader_invalid_size(t *testing.T) {
	if _, err := NewLoader[int](0, time.Minute); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("got err %v, want ErrInvalidSize", err)
	}
}

func TestLoader_Get_miss_then_hit(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoader[string](10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	v, hit, err := c.Get(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if hit {
		t.Error("expected miss")
	}

	if v != "v-a" {
		t.Errorf("got %q", v)
	}

	v, hit, err = c.Get(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if !hit || v != "v-a" {
		t.Errorf("got (%q, hit=%v), want cached v-a", v, hit)
	}

	if loads.Load() != 1 {
		t.Errorf("loads = %d", loads.Load())
	}
}

func TestLoader_Get_expires(t *testing.T) {
	c, err := NewLoader[int](10, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, _ string) (int, error) { return 1, nil }

	if _, _, err := c.Get(ctx, "a", load); err != nil {
		t.Fatal(err)
	}

	time.Sleep(60 * time.Millisecond)

	_, hit, err := c.Get(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if hit {
		t.Error("expected miss after ttl")
	}
}

func TestLoader_Get_evicts_least_recent(t *testing.T) {
	c, err := NewLoader[string](2, 0)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) { return key, nil }

	_, _, _ = c.Get(ctx, "a", load)
	_, _, _ = c.Get(ctx, "b", load)
	_, _, _ = c.Get(ctx, "c", load)

	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}

	if _, hit, _ := c.Get(ctx, "a", load); hit {
		t.Error("expected a to be evicted")
	}
}

func TestLoader_Get_singleflight(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoader[int](10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	release := make(chan struct{})

	//nolint:unparam // load always returns nil error for this test.
	load := func(_ context.Context, _ string) (int, error) {
		loads.Add(1)
		<-release

		return 42, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			val, _, err := c.Get(ctx, "x", load)
			if err != nil {
				t.Error(err)

				return
			}

			if val != 42 {
				t.Errorf("got %d", val)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// Callers that arrive after the first load finished hit the cache, so any
	// overlap at all keeps this at one.
	if n := loads.Load(); n != 1 {
		t.Errorf("expected 1 load, got %d", n)
	}
}

func TestLoader_Invalidate(t *testing.T) {
	c, err := NewLoader[string](10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) { return "v-" + key, nil }

	_, _, _ = c.Get(ctx, "a", load)
	_, _, _ = c.Get(ctx, "b", load)

	c.Invalidate("a")

	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}

	c.Purge()

	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestLoader_Get_load_error(t *testing.T) {
	c, err := NewLoader[string](10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	loadErr := context.DeadlineExceeded
	load := func(_ context.Context, _ string) (string, error) {
		return "", loadErr
	}

	_, _, err = c.Get(ctx, "a", load)
	if !errors.Is(err, loadErr) {
		t.Errorf("got err %v", err)
	}

	if c.Len() != 0 {
		t.Error("failed load should not be cached")
	}
}
