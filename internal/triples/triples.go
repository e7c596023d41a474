// Package triples defines the integer triple representation shared by the
// evaluation engine.
package triples

import "fmt"

// Side identifies which entity column of a triple is being corrupted during
// link prediction.
type Side int

const (
	SideHead Side = iota
	SideTail
)

func (s Side) String() string {
	switch s {
	case SideHead:
		return "head"
	case SideTail:
		return "tail"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Valid reports whether s is one of the two corruptible sides.
func (s Side) Valid() bool {
	return s == SideHead || s == SideTail
}

// Triple is a (head, relation, tail) statement with all labels already mapped
// to integer IDs.
type Triple struct {
	Head     int
	Relation int
	Tail     int
}

// Entity returns the entity on the corrupted column for the given side.
func (t Triple) Entity(s Side) int {
	if s == SideHead {
		return t.Head
	}
	return t.Tail
}

// Anchor returns the entity on the fixed column, i.e. the one that is not
// being corrupted for the given side.
func (t Triple) Anchor(s Side) int {
	if s == SideHead {
		return t.Tail
	}
	return t.Head
}

// TripleSet is an ordered sequence of triples. Order is evaluation order and
// carries no semantic meaning; duplicates are permitted.
type TripleSet []Triple

// Select returns the triples whose mask entry is true, preserving order.
func (ts TripleSet) Select(mask []bool) TripleSet {
	out := make(TripleSet, 0, len(ts))
	for i, t := range ts {
		if mask[i] {
			out = append(out, t)
		}
	}
	return out
}

// PositiveIndex returns the union of all triples that must never count as a
// valid corruption during filtered evaluation: the known training triples
// plus the triples currently under evaluation. The result is an independent
// copy and is treated as immutable for the duration of one evaluation run.
func PositiveIndex(known, evaluated TripleSet) TripleSet {
	out := make(TripleSet, 0, len(known)+len(evaluated))
	out = append(out, known...)
	out = append(out, evaluated...)
	return out
}
