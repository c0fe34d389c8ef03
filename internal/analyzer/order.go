package analyzer

import (
	"sort"

	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// ProposeOrder returns member names sorted by alignment, then size, both
// descending. Ties keep declaration order so the result is deterministic.
// Base subobjects cannot move: they stay first, in declaration order.
//
// This is the usual greedy heuristic; it does not search permutations and is
// not guaranteed to find the minimum-padding order. Bitfields are placed like
// any other member using their declared size and alignment.
func ProposeOrder(members []layout.Member) []string {
	idx := make([]int, len(members))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(i, j int) bool {
		a, b := members[idx[i]], members[idx[j]]
		if a.IsBase || b.IsBase {
			return a.IsBase && !b.IsBase
		}
		if a.Alignment != b.Alignment {
			return a.Alignment > b.Alignment
		}
		return a.Size > b.Size
	})

	order := make([]string, len(idx))
	for i, k := range idx {
		order[i] = members[k].Name
	}
	return order
}

// sameOrder reports whether order lists the members in declaration order.
func sameOrder(members []layout.Member, order []string) bool {
	if len(members) != len(order) {
		return false
	}
	for i, m := range members {
		if m.Name != order[i] {
			return false
		}
	}
	return true
}

// fieldsOnly drops base subobjects from order.
func fieldsOnly(members []layout.Member, order []string) []string {
	bases := make(map[string]bool)
	for _, m := range members {
		if m.IsBase {
			bases[m.Name] = true
		}
	}
	if len(bases) == 0 {
		return order
	}

	out := make([]string, 0, len(order)-len(bases))
	for _, name := range order {
		if !bases[name] {
			out = append(out, name)
		}
	}
	return out
}
