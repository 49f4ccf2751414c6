package marks

import (
	"fmt"

	"marks-go/internal/model"
)

const (
	// orderSpacing is the gap used for first inserts, appends and
	// rebalanced rows, so long runs of sequential appends never force a
	// rebalance.
	orderSpacing = 1000.0

	// minOrderGap is the smallest usable gap between two adjacent order
	// keys. A midpoint insert into a gap below 2*minOrderGap triggers an
	// inline rebalance of the whole collection first.
	minOrderGap = 1e-6
)

// neighbors locates the membership rows an insert lands between.
// after == nil places at the tail; a pointer to the empty string places at
// the head; otherwise after names the bookmark the new member follows.
func neighbors(members []*model.BookmarkCollection, after *string) (prev, next *model.BookmarkCollection, err error) {
	if after == nil {
		if len(members) > 0 {
			prev = members[len(members)-1]
		}
		return prev, nil, nil
	}
	if *after == "" {
		if len(members) > 0 {
			next = members[0]
		}
		return nil, next, nil
	}
	for i, m := range members {
		if m.BookmarkID == *after {
			if i+1 < len(members) {
				next = members[i+1]
			}
			return m, next, nil
		}
	}
	return nil, nil, fmt.Errorf("bookmark %s: %w in collection", *after, ErrNotFound)
}

// orderKeyBetween returns the order key for a member inserted between prev
// and next (nil means open head/tail). ok is false when the gap between
// prev and next has underflowed and the collection needs rebalancing.
func orderKeyBetween(prev, next *model.BookmarkCollection) (key float64, ok bool) {
	switch {
	case prev == nil && next == nil:
		return orderSpacing, true
	case prev == nil:
		return next.Ord - orderSpacing, true
	case next == nil:
		return prev.Ord + orderSpacing, true
	default:
		if next.Ord-prev.Ord < 2*minOrderGap {
			return 0, false
		}
		return prev.Ord + (next.Ord-prev.Ord)/2, true
	}
}

// rebalanceCollection reassigns evenly spaced keys to every member of the
// collection in one pass, preserving relative order. It runs inside the
// same transaction as the insert that triggered it so readers never see a
// half-respaced collection. Returns the refreshed membership rows.
func rebalanceCollection(tx Tx, collectionID string) ([]*model.BookmarkCollection, error) {
	members, err := tx.CollectionMembers(collectionID)
	if err != nil {
		return nil, err
	}
	for i, m := range members {
		ord := float64(i+1) * orderSpacing
		if m.Ord == ord {
			continue
		}
		if err := tx.UpdateCollectionMemberOrd(collectionID, m.BookmarkID, ord); err != nil {
			return nil, err
		}
		m.Ord = ord
	}
	return members, nil
}

// withoutMember filters the membership row for bookmarkID out of members.
// Used when moving an existing member, whose current position must not
// count as its own neighbor.
func withoutMember(members []*model.BookmarkCollection, bookmarkID string) []*model.BookmarkCollection {
	if bookmarkID == "" {
		return members
	}
	out := members[:0:0]
	for _, m := range members {
		if m.BookmarkID != bookmarkID {
			out = append(out, m)
		}
	}
	return out
}

// orderKeyFor computes the key for placing a member after the position
// named by after, rebalancing at most once when the target gap has
// underflowed. exclude names a member to ignore (the one being moved);
// pass "" for plain inserts.
func orderKeyFor(tx Tx, collectionID string, after *string, exclude string) (float64, error) {
	members, err := tx.CollectionMembers(collectionID)
	if err != nil {
		return 0, err
	}
	prev, next, err := neighbors(withoutMember(members, exclude), after)
	if err != nil {
		return 0, err
	}
	key, ok := orderKeyBetween(prev, next)
	if ok {
		return key, nil
	}

	members, err = rebalanceCollection(tx, collectionID)
	if err != nil {
		return 0, fmt.Errorf("rebalancing collection %s: %w", collectionID, err)
	}
	prev, next, err = neighbors(withoutMember(members, exclude), after)
	if err != nil {
		return 0, err
	}
	key, ok = orderKeyBetween(prev, next)
	if !ok {
		// Fresh spacing cannot underflow; this means the store returned
		// inconsistent rows.
		return 0, fmt.Errorf("collection %s: gap underflow immediately after rebalance", collectionID)
	}
	return key, nil
}
