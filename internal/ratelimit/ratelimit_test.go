package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func testLimiter(nowF func() time.Time) *Limiter {
	return NewLimiter(NewMemoryStore(withNow(nowF)))
}

func TestCheckCountsDown(t *testing.T) {
	lim := testLimiter(time.Now)
	cfg := Config{Name: "auth", MaxRequests: 5, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := lim.Check(ctx, "1.2.3.4", cfg)
		if err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
		want := 5 - (i + 1)
		if res.Remaining != want {
			t.Errorf("call %d remaining: want %d, got %d", i+1, want, res.Remaining)
		}
		if res.RetryAfter != 0 {
			t.Errorf("call %d: allowed result should have zero RetryAfter", i+1)
		}
	}

	res, err := lim.Check(ctx, "1.2.3.4", cfg)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Fatal("sixth call in window should be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("rejected call should carry RetryAfter > 0, got %v", res.RetryAfter)
	}
	if res.Remaining != 0 {
		t.Errorf("rejected call remaining: want 0, got %d", res.Remaining)
	}
}

func TestCheckWindowReset(t *testing.T) {
	now := time.Unix(1000, 0)
	var mu sync.Mutex
	nowF := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	lim := testLimiter(nowF)
	cfg := Config{Name: "auth", MaxRequests: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := lim.Check(ctx, "k", cfg); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}

	mu.Lock()
	now = now.Add(time.Minute + time.Second)
	mu.Unlock()

	res, err := lim.Check(ctx, "k", cfg)
	if err != nil {
		t.Fatalf("Check after window: %v", err)
	}
	if !res.Allowed {
		t.Fatal("first call of the new window should be allowed")
	}
	if res.Remaining != 2 {
		t.Errorf("new window remaining: want 2, got %d", res.Remaining)
	}
}

func TestCheckKeysAreIndependent(t *testing.T) {
	lim := testLimiter(time.Now)
	cfg := Config{Name: "auth", MaxRequests: 1, Window: time.Minute}
	ctx := context.Background()

	if res, _ := lim.Check(ctx, "a", cfg); !res.Allowed {
		t.Fatal("first call for key a should be allowed")
	}
	if res, _ := lim.Check(ctx, "a", cfg); res.Allowed {
		t.Fatal("second call for key a should be rejected")
	}
	if res, _ := lim.Check(ctx, "b", cfg); !res.Allowed {
		t.Fatal("key b has its own budget")
	}
}

func TestConfigsDoNotShareCounters(t *testing.T) {
	lim := testLimiter(time.Now)
	ctx := context.Background()
	auth := Config{Name: "auth", MaxRequests: 1, Window: time.Minute}
	api := Config{Name: "api", MaxRequests: 1, Window: time.Minute}

	if res, _ := lim.Check(ctx, "k", auth); !res.Allowed {
		t.Fatal("auth budget should admit the first call")
	}
	if res, _ := lim.Check(ctx, "k", api); !res.Allowed {
		t.Fatal("api budget is independent of the auth budget")
	}
}

func TestConcurrentChecksNeverUnderCount(t *testing.T) {
	lim := testLimiter(time.Now)
	cfg := Config{Name: "api", MaxRequests: 50, Window: time.Minute}
	ctx := context.Background()

	const calls = 100
	var wg sync.WaitGroup
	allowed := make(chan bool, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := lim.Check(ctx, "hot", cfg)
			if err != nil {
				t.Errorf("Check: %v", err)
				return
			}
			allowed <- res.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	n := 0
	for ok := range allowed {
		if ok {
			n++
		}
	}
	if n != 50 {
		t.Errorf("want exactly 50 admitted, got %d", n)
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	now := time.Unix(1000, 0)
	var mu sync.Mutex
	nowF := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s := NewMemoryStore(withNow(nowF), WithIdleTTL(time.Minute))

	if _, _, err := s.Incr(context.Background(), "stale", time.Minute); err != nil {
		t.Fatalf("Incr: %v", err)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	s.Cleanup()

	s.mu.Lock()
	_, present := s.entries["stale"]
	s.mu.Unlock()
	if present {
		t.Error("idle key should have been evicted")
	}
}

func TestCleanupKeepsOpenWindows(t *testing.T) {
	now := time.Unix(1000, 0)
	var mu sync.Mutex
	nowF := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := NewMemoryStore(withNow(nowF), WithIdleTTL(15*time.Minute))
	lim := NewLimiter(store)
	cfg := Config{Name: "reset", MaxRequests: 3, Window: time.Hour}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := lim.Check(ctx, "k", cfg)
		if err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	// Idle past the janitor TTL but well inside the hour window.
	mu.Lock()
	now = now.Add(20 * time.Minute)
	mu.Unlock()
	store.Cleanup()

	res, err := lim.Check(ctx, "k", cfg)
	if err != nil {
		t.Fatalf("Check after cleanup: %v", err)
	}
	if res.Allowed {
		t.Fatal("exhausted budget must stay exhausted until the window elapses")
	}

	// Once the window has elapsed too, the janitor may drop the key.
	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()
	store.Cleanup()

	store.mu.Lock()
	_, present := store.entries[cfg.Name+":k"]
	store.mu.Unlock()
	if present {
		t.Error("elapsed idle key should have been evicted")
	}
}
