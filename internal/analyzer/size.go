package analyzer

import "github.com/ieee-cs-bmsit/structsight/internal/layout"

// MemberIndex maps member names to members for SimulateSize.
func MemberIndex(members []layout.Member) map[string]layout.Member {
	byName := make(map[string]layout.Member, len(members))
	for _, m := range members {
		byName[m.Name] = m
	}
	return byName
}

// SimulateSize returns the size a record would have if its members were laid
// out in order, each at the next offset satisfying its alignment, with the
// total rounded up to the largest alignment seen.
//
// A polymorphic record starts with one pointer-sized vtable pointer.
// Secondary vtables from multiple inheritance and virtual-base adjustments
// are not modeled. Names missing from byName are skipped.
func SimulateSize(byName map[string]layout.Member, order []string, polymorphic bool, pointerSize uint64) uint64 {
	var cursor uint64
	maxAlign := uint64(1)

	if polymorphic {
		cursor = pointerSize
		maxAlign = pointerSize
	}

	for _, name := range order {
		m, ok := byName[name]
		if !ok {
			continue
		}
		cursor = alignUp(cursor, m.Alignment)
		cursor += m.Size
		maxAlign = max(maxAlign, m.Alignment)
	}

	return alignUp(cursor, maxAlign)
}

// alignUp returns the smallest y >= x such that y % a == 0. An alignment of
// zero leaves x unchanged.
func alignUp(x, a uint64) uint64 {
	if a == 0 {
		return x
	}
	y := x + a - 1
	return y - y%a
}
