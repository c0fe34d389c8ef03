// Package layout defines the record descriptors exchanged between extractors,
// the analyzer and the rendering/storage layers.
package layout

// Member describes one field of a record as measured by an extractor.
type Member struct {
	Name           string `json:"name" yaml:"name" msgpack:"name"`
	Type           string `json:"type" yaml:"type" msgpack:"type"`
	Offset         uint64 `json:"offset" yaml:"offset" msgpack:"offset"`      // Bytes from record start
	Size           uint64 `json:"size" yaml:"size" msgpack:"size"`            // Bytes
	Alignment      uint64 `json:"alignment" yaml:"alignment" msgpack:"align"` // Power of two
	IsBitfield     bool   `json:"isBitfield" yaml:"is_bitfield" msgpack:"bf"`
	BitfieldWidth  uint32 `json:"bitfieldWidth" yaml:"bitfield_width" msgpack:"bfw"`   // Bits, only if IsBitfield
	BitfieldOffset uint32 `json:"bitfieldOffset" yaml:"bitfield_offset" msgpack:"bfo"` // Bit offset within containing byte
	IsBase         bool   `json:"isBase,omitempty" yaml:"is_base" msgpack:"base"`      // Base class subobject, never reordered
}

// End returns the first byte past the member.
func (m Member) End() uint64 {
	return m.Offset + m.Size
}

// PaddingKind classifies a padding region.
type PaddingKind int

const (
	InterMember PaddingKind = iota // Gap before the next member
	TailPadding                    // Gap after the last member
)

func (k PaddingKind) String() string {
	switch k {
	case InterMember:
		return "inter-member"
	case TailPadding:
		return "tail"
	default:
		return "unknown"
	}
}

// PaddingRegion is a run of unused bytes inside a record.
type PaddingRegion struct {
	Offset uint64      `json:"offset" msgpack:"offset"`
	Size   uint64      `json:"size" msgpack:"size"`
	Kind   PaddingKind `json:"kind" msgpack:"kind"`
	Reason string      `json:"reason" msgpack:"reason"`
	Next   string      `json:"next,omitempty" msgpack:"next"` // Following member, empty for tail padding
}

// VTable describes the virtual dispatch table of a polymorphic record.
// Only a single leading vtable pointer is modeled.
type VTable struct {
	PointerOffset    uint64   `json:"pointerOffset" yaml:"pointer_offset" msgpack:"ptr"`
	VirtualFunctions []string `json:"virtualFunctions" yaml:"virtual_functions" msgpack:"fns"`
	HasVirtualBase   bool     `json:"hasVirtualBase" yaml:"has_virtual_base" msgpack:"vbase"`
}

// Polymorphism tells how faithfully the size simulator can model a record's
// vtable overhead.
type Polymorphism int

const (
	NotPolymorphic     Polymorphism = iota
	SimplePolymorphic               // Single leading vtable pointer
	ComplexPolymorphic              // Virtual bases; simulated as simple, estimate only
)

func (p Polymorphism) String() string {
	switch p {
	case NotPolymorphic:
		return "none"
	case SimplePolymorphic:
		return "simple"
	case ComplexPolymorphic:
		return "complex"
	default:
		return "unknown"
	}
}

// SuggestionKind enumerates the optimization categories.
type SuggestionKind int

const (
	Reorder       SuggestionKind = iota // Member reordering that shrinks the record
	CacheLineSpan                       // Informational: member straddles cache lines
)

func (k SuggestionKind) String() string {
	switch k {
	case Reorder:
		return "reorder"
	case CacheLineSpan:
		return "cache-line"
	default:
		return "unknown"
	}
}

// Suggestion is one actionable or informational finding.
//
// Confidence is a fixed coefficient per kind, not a calibrated probability.
type Suggestion struct {
	Kind           SuggestionKind `json:"kind" msgpack:"kind"`
	Description    string         `json:"description" msgpack:"desc"`
	BytesSaved     uint64         `json:"bytesSaved" msgpack:"saved"`
	SuggestedOrder []string       `json:"suggestedOrder" msgpack:"order"`
	Confidence     float64        `json:"confidence" msgpack:"conf"`
}

// Descriptor is the record under analysis.
//
// Extractors populate everything except Padding and Optimizations, which the
// analyzer derives on every run.
type Descriptor struct {
	Name             string          `json:"name" yaml:"name" msgpack:"name"`
	QualifiedName    string          `json:"qualifiedName" yaml:"qualified_name" msgpack:"qname"`
	TotalSize        uint64          `json:"totalSize" yaml:"total_size" msgpack:"size"`
	Alignment        uint64          `json:"alignment" yaml:"alignment" msgpack:"align"`
	Members          []Member        `json:"members" yaml:"members" msgpack:"members"`
	Padding          []PaddingRegion `json:"padding" yaml:"-" msgpack:"padding"`
	VTable           *VTable         `json:"vtable,omitempty" yaml:"vtable,omitempty" msgpack:"vtable"`
	IsPolymorphic    bool            `json:"isPolymorphic" yaml:"is_polymorphic" msgpack:"poly"`
	IsStandardLayout bool            `json:"isStandardLayout" yaml:"is_standard_layout" msgpack:"std"`
	UsefulSize       uint64          `json:"usefulSize" yaml:"useful_size" msgpack:"useful"`
	Optimizations    []Suggestion    `json:"optimizations" yaml:"-" msgpack:"opts"`
}

// Polymorphism classifies the record's vtable shape.
func (d *Descriptor) Polymorphism() Polymorphism {
	if !d.IsPolymorphic {
		return NotPolymorphic
	}
	if d.VTable != nil && d.VTable.HasVirtualBase {
		return ComplexPolymorphic
	}
	return SimplePolymorphic
}

// ComputeUsefulSize returns the end of the last declared member, i.e. the
// total size minus tail padding.
func (d *Descriptor) ComputeUsefulSize() uint64 {
	if len(d.Members) == 0 {
		return 0
	}
	return d.Members[len(d.Members)-1].End()
}

// MemberNames returns member names in declaration order.
func (d *Descriptor) MemberNames() []string {
	names := make([]string, len(d.Members))
	for i, m := range d.Members {
		names[i] = m.Name
	}
	return names
}

// TotalPadding sums the sizes of all padding regions.
func (d *Descriptor) TotalPadding() uint64 {
	var total uint64
	for _, p := range d.Padding {
		total += p.Size
	}
	return total
}

// PaddingRatio returns padding bytes as a fraction of the total size.
func (d *Descriptor) PaddingRatio() float64 {
	if d.TotalSize == 0 {
		return 0
	}
	return float64(d.TotalPadding()) / float64(d.TotalSize)
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Members = append([]Member(nil), d.Members...)
	c.Padding = append([]PaddingRegion(nil), d.Padding...)
	if d.VTable != nil {
		vt := *d.VTable
		vt.VirtualFunctions = append([]string(nil), d.VTable.VirtualFunctions...)
		c.VTable = &vt
	}
	if d.Optimizations != nil {
		c.Optimizations = make([]Suggestion, len(d.Optimizations))
		for i, s := range d.Optimizations {
			s.SuggestedOrder = append([]string(nil), s.SuggestedOrder...)
			c.Optimizations[i] = s
		}
	}
	return c
}
