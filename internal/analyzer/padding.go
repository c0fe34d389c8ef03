package analyzer

import (
	"fmt"

	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// DetectPadding returns the gaps between consecutive members and after the
// last member. Members must be in offset order, which declaration order
// always is for a measured layout.
func DetectPadding(d layout.Descriptor) []layout.PaddingRegion {
	if len(d.Members) == 0 {
		return nil
	}

	var regions []layout.PaddingRegion

	// Gaps between members
	for i := 0; i < len(d.Members)-1; i++ {
		cur := d.Members[i]
		next := d.Members[i+1]

		end := cur.End()
		if next.Offset > end {
			regions = append(regions, layout.PaddingRegion{
				Offset: end,
				Size:   next.Offset - end,
				Kind:   layout.InterMember,
				Reason: fmt.Sprintf("Alignment of next member (%s)", next.Name),
				Next:   next.Name,
			})
		}
	}

	// Tail padding
	last := d.Members[len(d.Members)-1]
	if end := last.End(); d.TotalSize > end {
		regions = append(regions, layout.PaddingRegion{
			Offset: end,
			Size:   d.TotalSize - end,
			Kind:   layout.TailPadding,
			Reason: "Tail padding for struct alignment",
		})
	}

	return regions
}
