package triples

// RestrictionMask computes, for each triple, whether it survives the given
// entity and relation restrictions. A triple survives when both its head and
// its tail are members of the entity restriction (if one is given) and its
// relation is a member of the relation restriction (if one is given).
//
// Two implementations exist as a memory/speed trade-off: the memory-intense
// variant builds membership sets sized by the restrictions and scans the
// triples once, while the incremental variant allocates only triples-length
// masks and scans the triples once per restriction ID. Both produce
// identical masks for identical inputs.
func RestrictionMask(ts TripleSet, entities, relations []int, memoryIntense bool) []bool {
	if memoryIntense {
		return restrictionMaskBroadcast(ts, entities, relations)
	}
	return restrictionMaskIncremental(ts, entities, relations)
}

func restrictionMaskBroadcast(ts TripleSet, entities, relations []int) []bool {
	mask := make([]bool, len(ts))
	for i := range mask {
		mask[i] = true
	}

	if entities != nil {
		allowed := make(map[int]struct{}, len(entities))
		for _, id := range entities {
			allowed[id] = struct{}{}
		}
		for i, t := range ts {
			if _, ok := allowed[t.Head]; !ok {
				mask[i] = false
				continue
			}
			if _, ok := allowed[t.Tail]; !ok {
				mask[i] = false
			}
		}
	}

	if relations != nil {
		allowed := make(map[int]struct{}, len(relations))
		for _, id := range relations {
			allowed[id] = struct{}{}
		}
		for i, t := range ts {
			if _, ok := allowed[t.Relation]; !ok {
				mask[i] = false
			}
		}
	}

	return mask
}

func restrictionMaskIncremental(ts TripleSet, entities, relations []int) []bool {
	mask := make([]bool, len(ts))
	for i := range mask {
		mask[i] = true
	}

	if entities != nil {
		headOK := make([]bool, len(ts))
		tailOK := make([]bool, len(ts))
		for _, id := range entities {
			for i, t := range ts {
				if t.Head == id {
					headOK[i] = true
				}
				if t.Tail == id {
					tailOK[i] = true
				}
			}
		}
		for i := range mask {
			mask[i] = mask[i] && headOK[i] && tailOK[i]
		}
	}

	if relations != nil {
		relOK := make([]bool, len(ts))
		for _, id := range relations {
			for i, t := range ts {
				if t.Relation == id {
					relOK[i] = true
				}
			}
		}
		for i := range mask {
			mask[i] = mask[i] && relOK[i]
		}
	}

	return mask
}
