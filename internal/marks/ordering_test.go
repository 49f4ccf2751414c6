package marks

import (
	"testing"

	"marks-go/internal/model"
)

func members(ords ...float64) []*model.BookmarkCollection {
	out := make([]*model.BookmarkCollection, len(ords))
	for i, ord := range ords {
		out[i] = &model.BookmarkCollection{
			BookmarkID: string(rune('a' + i)),
			Ord:        ord,
		}
	}
	return out
}

func strptr(s string) *string { return &s }

func TestNeighbors(t *testing.T) {
	ms := members(1000, 2000, 3000)

	t.Run("nil after places at tail", func(t *testing.T) {
		prev, next, err := neighbors(ms, nil)
		if err != nil {
			t.Fatal(err)
		}
		if prev == nil || prev.BookmarkID != "c" || next != nil {
			t.Errorf("got prev=%v next=%v, want prev=c next=nil", prev, next)
		}
	})

	t.Run("empty after places at head", func(t *testing.T) {
		prev, next, err := neighbors(ms, strptr(""))
		if err != nil {
			t.Fatal(err)
		}
		if prev != nil || next == nil || next.BookmarkID != "a" {
			t.Errorf("got prev=%v next=%v, want prev=nil next=a", prev, next)
		}
	})

	t.Run("named member in the middle", func(t *testing.T) {
		prev, next, err := neighbors(ms, strptr("b"))
		if err != nil {
			t.Fatal(err)
		}
		if prev.BookmarkID != "b" || next.BookmarkID != "c" {
			t.Errorf("got prev=%s next=%s, want prev=b next=c", prev.BookmarkID, next.BookmarkID)
		}
	})

	t.Run("named last member", func(t *testing.T) {
		prev, next, err := neighbors(ms, strptr("c"))
		if err != nil {
			t.Fatal(err)
		}
		if prev.BookmarkID != "c" || next != nil {
			t.Errorf("got prev=%s next=%v, want prev=c next=nil", prev.BookmarkID, next)
		}
	})

	t.Run("unknown member fails", func(t *testing.T) {
		if _, _, err := neighbors(ms, strptr("zz")); err == nil {
			t.Error("expected error for unknown member")
		}
	})

	t.Run("empty collection", func(t *testing.T) {
		prev, next, err := neighbors(nil, nil)
		if err != nil || prev != nil || next != nil {
			t.Errorf("got prev=%v next=%v err=%v, want all nil", prev, next, err)
		}
	})
}

func TestOrderKeyBetween(t *testing.T) {
	t.Run("first member", func(t *testing.T) {
		key, ok := orderKeyBetween(nil, nil)
		if !ok || key != orderSpacing {
			t.Errorf("got key=%v ok=%v, want %v true", key, ok, orderSpacing)
		}
	})

	t.Run("append", func(t *testing.T) {
		prev := &model.BookmarkCollection{Ord: 3000}
		key, ok := orderKeyBetween(prev, nil)
		if !ok || key != 4000 {
			t.Errorf("got key=%v ok=%v, want 4000 true", key, ok)
		}
	})

	t.Run("prepend", func(t *testing.T) {
		next := &model.BookmarkCollection{Ord: 1000}
		key, ok := orderKeyBetween(nil, next)
		if !ok || key != 0 {
			t.Errorf("got key=%v ok=%v, want 0 true", key, ok)
		}
	})

	t.Run("midpoint", func(t *testing.T) {
		prev := &model.BookmarkCollection{Ord: 1000}
		next := &model.BookmarkCollection{Ord: 2000}
		key, ok := orderKeyBetween(prev, next)
		if !ok || key != 1500 {
			t.Errorf("got key=%v ok=%v, want 1500 true", key, ok)
		}
	})

	t.Run("underflowed gap signals rebalance", func(t *testing.T) {
		prev := &model.BookmarkCollection{Ord: 1000}
		next := &model.BookmarkCollection{Ord: 1000 + minOrderGap}
		if _, ok := orderKeyBetween(prev, next); ok {
			t.Error("gap below 2*minOrderGap should not be usable")
		}
	})
}

func TestWithoutMember(t *testing.T) {
	ms := members(1000, 2000, 3000)

	got := withoutMember(ms, "b")
	if len(got) != 2 || got[0].BookmarkID != "a" || got[1].BookmarkID != "c" {
		t.Errorf("withoutMember(b) = %v, want [a c]", got)
	}
	if got := withoutMember(ms, ""); len(got) != 3 {
		t.Errorf("empty exclude should keep all members, got %d", len(got))
	}
	// The input slice must not be mutated.
	if len(ms) != 3 || ms[1].BookmarkID != "b" {
		t.Error("withoutMember mutated its input")
	}
}
