package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newClockedStore() (*MemoryStore, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(0)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryStoreSetGet(t *testing.T) {
	s, _ := newClockedStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	s, _ := newClockedStore()

	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s, now := newClockedStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	*now = now.Add(61 * time.Second)

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStoreGetDelConsumesOnce(t *testing.T) {
	s, _ := newClockedStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.GetDel(ctx, "k")
	if err != nil {
		t.Fatalf("first getdel: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}

	if _, err := s.GetDel(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second getdel should be ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreIncrWindow(t *testing.T) {
	s, now := newClockedStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := s.Incr(ctx, "ctr")
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if count != want {
			t.Fatalf("count = %d, want %d", count, want)
		}
	}

	if err := s.Expire(ctx, "ctr", 30*time.Second); err != nil {
		t.Fatalf("expire: %v", err)
	}

	*now = now.Add(31 * time.Second)

	count, err := s.Incr(ctx, "ctr")
	if err != nil {
		t.Fatalf("incr after window: %v", err)
	}
	if count != 1 {
		t.Fatalf("count after window = %d, want 1", count)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	s, now := newClockedStore()
	ctx := context.Background()

	if err := s.Set(ctx, "a", []byte("1"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "b", []byte("2"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	*now = now.Add(2 * time.Second)
	s.sweep()

	s.mu.Lock()
	_, aLive := s.items["a"]
	_, bLive := s.items["b"]
	s.mu.Unlock()

	if aLive {
		t.Fatal("expired entry survived sweep")
	}
	if !bLive {
		t.Fatal("live entry removed by sweep")
	}
}
