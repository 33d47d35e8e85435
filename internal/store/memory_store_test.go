package store

import (
	"context"
	"testing"
)

func TestMemoryStoreHash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.HGetAll(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	got, err := s.HGetAll(ctx, "h")
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if got["a"] != "1" || got["b"] != "2" {
		t.Errorf("unexpected hash contents: %v", got)
	}
}

func TestMemoryStoreSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.SAdd(ctx, "s", "x")
	_ = s.SAdd(ctx, "s", "y")
	_ = s.SAdd(ctx, "s", "x") // idempotent

	members, _ := s.SMembers(ctx, "s")
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d: %v", len(members), members)
	}

	_ = s.SRem(ctx, "s", "x")
	members, _ = s.SMembers(ctx, "s")
	if len(members) != 1 || members[0] != "y" {
		t.Errorf("expected only 'y' left, got %v", members)
	}
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.RPush(ctx, "l", "a")
	_ = s.RPush(ctx, "l", "b")
	_ = s.RPush(ctx, "l", "c")

	v, err := s.LPop(ctx, "l")
	if err != nil || v != "a" {
		t.Fatalf("expected head 'a', got %q err=%v", v, err)
	}

	n, err := s.LRem(ctx, "l", "c")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 removed, got %d err=%v", n, err)
	}

	remaining, _ := s.LRange(ctx, "l", 0, -1)
	if len(remaining) != 1 || remaining[0] != "b" {
		t.Errorf("expected only 'b' left, got %v", remaining)
	}
}

func TestMemoryStoreListPopEmptyIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.LPop(ctx, "empty"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound popping empty list, got %v", err)
	}
}

func TestMemoryStoreStringAndIncr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := s.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("Get: %q, %v", v, err)
	}

	n, err := s.Incr(ctx, "counter")
	if err != nil || n != 1 {
		t.Fatalf("expected counter 1, got %d err=%v", n, err)
	}
	n, err = s.Incr(ctx, "counter")
	if err != nil || n != 2 {
		t.Fatalf("expected counter 2, got %d err=%v", n, err)
	}
}
