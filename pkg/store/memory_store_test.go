package store

import (
	"testing"
	"time"

	"wishwall/pkg/domain"
)

func TestMemoryStoreInsertAssignsIDAndTimestamp(t *testing.T) {
	m := NewMemoryStore()
	before := time.Now().UTC()
	id, err := m.InsertWish(domain.Wish{Name: "Alex", Wish: "Happy birthday!!", AvatarID: "slyv1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	rows, err := m.ListRecent(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].ID != id {
		t.Fatalf("row id = %q, want %q", rows[0].ID, id)
	}
	if rows[0].CreatedAt.Before(before) {
		t.Fatalf("created_at %v is before insert time %v", rows[0].CreatedAt, before)
	}
}

func TestMemoryStoreListRecentOrderAndCap(t *testing.T) {
	m := NewMemoryStore()
	var last string
	for i := 0; i < 5; i++ {
		id, err := m.InsertWish(domain.Wish{Name: "n", Wish: "hello there", AvatarID: "slyv1"})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		last = id
	}
	rows, err := m.ListRecent(3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[0].ID != last {
		t.Fatalf("newest row should come first")
	}

	again, err := m.ListRecent(3)
	if err != nil {
		t.Fatalf("list again: %v", err)
	}
	for i := range rows {
		if rows[i].ID != again[i].ID {
			t.Fatalf("repeated list changed order at %d", i)
		}
	}
}

func TestMemoryStoreCountByIPSince(t *testing.T) {
	m := NewMemoryStore()
	for i := 0; i < 3; i++ {
		if _, err := m.InsertWish(domain.Wish{Name: "n", Wish: "hello there", AvatarID: "slyv1", IPPlain: "203.0.113.7"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := m.InsertWish(domain.Wish{Name: "n", Wish: "hello there", AvatarID: "slyv1", IPPlain: "198.51.100.1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count, err := m.CountByIPSince("203.0.113.7", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	count, err = m.CountByIPSince("203.0.113.7", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("count future window: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 for future window", count)
	}
}
