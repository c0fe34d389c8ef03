// Package analyzer is the layout optimization engine: it derives padding
// regions and optimization suggestions from a measured record layout.
//
// Every function here is pure. Descriptors are taken and returned by value,
// so independent records may be analyzed concurrently without locking.
package analyzer

import (
	"fmt"

	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// CacheLineSize is the cache line width used for span detection.
const CacheLineSize = 64

// Fixed confidence coefficients per suggestion kind. They are static
// heuristics, not probabilities measured from data.
const (
	ReorderConfidence   = 0.95
	CacheLineConfidence = 0.8
)

// AnalyzeLayout returns d with Padding and Optimizations recomputed. Members,
// sizes and every other field are left as supplied.
func AnalyzeLayout(d layout.Descriptor, pointerSize uint64) layout.Descriptor {
	out := d.Clone()
	out.Padding = DetectPadding(d)
	out.Optimizations = GenerateSuggestions(d, pointerSize)
	return out
}

// GenerateSuggestions applies the reordering and cache-line rules
// independently and returns their findings, reordering first.
func GenerateSuggestions(d layout.Descriptor, pointerSize uint64) []layout.Suggestion {
	var out []layout.Suggestion

	if s, ok := reorderSuggestion(d, pointerSize); ok {
		out = append(out, s)
	}
	out = append(out, cacheLineSuggestions(d.Members)...)

	return out
}

func reorderSuggestion(d layout.Descriptor, pointerSize uint64) (layout.Suggestion, bool) {
	if len(d.Members) < 2 {
		return layout.Suggestion{}, false
	}

	order := ProposeOrder(d.Members)
	if sameOrder(d.Members, order) {
		return layout.Suggestion{}, false
	}

	optimized := SimulateSize(MemberIndex(d.Members), order, d.IsPolymorphic, pointerSize)
	if optimized >= d.TotalSize {
		return layout.Suggestion{}, false
	}

	return layout.Suggestion{
		Kind:           layout.Reorder,
		Description:    "Reorder members by alignment to reduce padding",
		BytesSaved:     d.TotalSize - optimized,
		SuggestedOrder: fieldsOnly(d.Members, order),
		Confidence:     ReorderConfidence,
	}, true
}

func cacheLineSuggestions(members []layout.Member) []layout.Suggestion {
	var out []layout.Suggestion
	for _, m := range members {
		// Members of a full line or more always span. Zero-size members occupy
		// no line at all and are never flagged, even at offset 0 or on a line
		// boundary.
		if m.Size == 0 || m.Size >= CacheLineSize {
			continue
		}
		startLine := m.Offset / CacheLineSize
		endLine := (m.End() - 1) / CacheLineSize
		if startLine == endLine {
			continue
		}
		out = append(out, layout.Suggestion{
			Kind:        layout.CacheLineSpan,
			Description: fmt.Sprintf("Member '%s' spans multiple cache lines", m.Name),
			Confidence:  CacheLineConfidence,
		})
	}
	return out
}
