package triples

import (
	"math/rand/v2"
	"testing"
)

func TestRestrictionMask_VariantsAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	ts := make(TripleSet, 200)
	for i := range ts {
		ts[i] = Triple{
			Head:     rng.IntN(20),
			Relation: rng.IntN(5),
			Tail:     rng.IntN(20),
		}
	}

	cases := []struct {
		name      string
		entities  []int
		relations []int
	}{
		{"entities only", []int{0, 1, 2, 3, 4, 5, 6, 7}, nil},
		{"relations only", nil, []int{1, 3}},
		{"both", []int{2, 4, 6, 8, 10, 12}, []int{0, 2}},
		{"empty entity restriction", []int{}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broadcast := RestrictionMask(ts, tc.entities, tc.relations, true)
			incremental := RestrictionMask(ts, tc.entities, tc.relations, false)
			for i := range ts {
				if broadcast[i] != incremental[i] {
					t.Fatalf("masks disagree at %d: broadcast=%v incremental=%v triple=%+v",
						i, broadcast[i], incremental[i], ts[i])
				}
			}
		})
	}
}

func TestRestrictionMask_Semantics(t *testing.T) {
	ts := TripleSet{
		{Head: 0, Relation: 0, Tail: 1}, // both entities allowed
		{Head: 0, Relation: 0, Tail: 5}, // tail outside restriction
		{Head: 5, Relation: 0, Tail: 1}, // head outside restriction
		{Head: 1, Relation: 2, Tail: 0}, // relation outside restriction
	}

	mask := RestrictionMask(ts, []int{0, 1}, []int{0}, true)
	want := []bool{true, false, false, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Fatalf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}

	selected := ts.Select(mask)
	if len(selected) != 1 || selected[0] != ts[0] {
		t.Fatalf("unexpected selection %+v", selected)
	}
}

func TestRestrictionMask_NoRestrictions(t *testing.T) {
	ts := TripleSet{{Head: 9, Relation: 9, Tail: 9}}
	for _, memoryIntense := range []bool{true, false} {
		mask := RestrictionMask(ts, nil, nil, memoryIntense)
		if !mask[0] {
			t.Fatalf("memoryIntense=%v: nil restrictions must keep every triple", memoryIntense)
		}
	}
}

func TestPositiveIndex_IsIndependentCopy(t *testing.T) {
	known := TripleSet{{Head: 0, Relation: 0, Tail: 1}}
	evaluated := TripleSet{{Head: 1, Relation: 0, Tail: 2}}

	idx := PositiveIndex(known, evaluated)
	if len(idx) != 2 {
		t.Fatalf("expected 2 triples, got %d", len(idx))
	}
	if idx[0] != known[0] || idx[1] != evaluated[0] {
		t.Fatalf("unexpected order: %+v", idx)
	}

	idx[0].Head = 42
	if known[0].Head == 42 {
		t.Fatal("positive index must not alias its inputs")
	}
}

func TestSideAccessors(t *testing.T) {
	tr := Triple{Head: 1, Relation: 2, Tail: 3}
	if tr.Entity(SideHead) != 1 || tr.Anchor(SideHead) != 3 {
		t.Fatalf("head side accessors wrong: %d, %d", tr.Entity(SideHead), tr.Anchor(SideHead))
	}
	if tr.Entity(SideTail) != 3 || tr.Anchor(SideTail) != 1 {
		t.Fatalf("tail side accessors wrong: %d, %d", tr.Entity(SideTail), tr.Anchor(SideTail))
	}
	if SideHead.String() != "head" || SideTail.String() != "tail" {
		t.Fatal("unexpected side names")
	}
	if Side(9).Valid() {
		t.Fatal("Side(9) must be invalid")
	}
}
