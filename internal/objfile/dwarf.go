package objfile

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"sort"
	"strings"

	"fortio.org/safecast"

	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

const dwOpPlusUconst = 0x23

// ReadObject returns the complete struct and class records described by the
// DWARF of an ELF object file, in debug-info order. The pointer size comes
// from the ELF class.
func ReadObject(path string) ([]layout.Descriptor, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrUnsupported, err)
	}
	defer f.Close()

	ptrSize := uint64(8)
	if f.Class == elf.ELFCLASS32 {
		ptrSize = 4
	}

	d, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no usable DWARF: %v", extract.ErrUnsupported, path, err)
	}

	return ReadDWARF(d, ptrSize)
}

// ReadDWARF walks compile units and namespaces collecting records.
// Function-local types, unions and anonymous records are not reported.
func ReadDWARF(d *dwarf.Data, ptrSize uint64) ([]layout.Descriptor, error) {
	w := &walker{
		data:    d,
		r:       d.Reader(),
		ptrSize: ptrSize,
		seen:    make(map[string]bool),
		dyn:     make(map[dwarf.Offset]bool),
	}

	var scope []string
	for {
		e, err := w.r.Next()
		if err != nil {
			return nil, err
		}
		if e == nil {
			break
		}

		switch e.Tag {
		case 0:
			if len(scope) > 0 {
				scope = scope[:len(scope)-1]
			}
		case dwarf.TagCompileUnit, dwarf.TagPartialUnit:
			if e.Children {
				scope = append(scope, "")
			}
		case dwarf.TagNamespace:
			if e.Children {
				name, _ := e.Val(dwarf.AttrName).(string)
				if name == "" {
					name = "(anonymous namespace)"
				}
				scope = append(scope, name)
			}
		case dwarf.TagStructType, dwarf.TagClassType:
			if err := w.record(e, scope); err != nil {
				return nil, err
			}
		default:
			if e.Children {
				w.r.SkipChildren()
			}
		}
	}

	return w.out, nil
}

type walker struct {
	data    *dwarf.Data
	r       *dwarf.Reader
	ptrSize uint64
	seen    map[string]bool
	dyn     map[dwarf.Offset]bool
	out     []layout.Descriptor
}

// record consumes a struct/class entry and its children, appending the
// record and then any nested records.
func (w *walker) record(e *dwarf.Entry, scope []string) error {
	name, _ := e.Val(dwarf.AttrName).(string)
	declaration, _ := e.Val(dwarf.AttrDeclaration).(bool)
	byteSize, hasSize := e.Val(dwarf.AttrByteSize).(int64)

	d := layout.Descriptor{
		Name:          name,
		QualifiedName: qualify(scope, name),
	}
	if hasSize {
		total, err := safecast.Conv[uint64](byteSize)
		if err != nil {
			return err
		}
		d.TotalSize = total
	}

	var (
		vt       layout.VTable
		hasVptr  bool
		maxAlign = uint64(1)
		nested   []layout.Descriptor
	)

	if e.Children {
		inner := append(append([]string(nil), scope...), name)
		for {
			c, err := w.r.Next()
			if err != nil {
				return err
			}
			if c == nil || c.Tag == 0 {
				break
			}

			switch c.Tag {
			case dwarf.TagMember:
				m, vptr, ok, err := w.member(c, len(d.Members))
				if err != nil {
					return err
				}
				if vptr {
					hasVptr = true
					maxAlign = max(maxAlign, w.ptrSize)
				}
				if ok {
					d.Members = append(d.Members, m)
					maxAlign = max(maxAlign, m.Alignment)
				}

			case dwarf.TagInheritance:
				b, err := w.base(c)
				if err != nil {
					return err
				}
				if b.virtual {
					vt.HasVirtualBase = true
					maxAlign = max(maxAlign, w.ptrSize)
				} else {
					maxAlign = max(maxAlign, b.member.Alignment)
				}
				if b.placed {
					d.Members = append(d.Members, b.member)
				}
				if b.dynamic {
					hasVptr = true
				}

			case dwarf.TagSubprogram:
				if v, _ := c.Val(dwarf.AttrVirtuality).(int64); v != 0 {
					fn, _ := c.Val(dwarf.AttrName).(string)
					vt.VirtualFunctions = append(vt.VirtualFunctions, fn)
				}

			case dwarf.TagStructType, dwarf.TagClassType:
				before := len(w.out)
				if err := w.record(c, inner); err != nil {
					return err
				}
				nested = append(nested, w.out[before:]...)
				w.out = w.out[:before]
				continue
			}

			if c.Children {
				w.r.SkipChildren()
			}
		}
	}

	if declaration || name == "" || !hasSize || w.seen[d.QualifiedName] {
		w.out = append(w.out, nested...)
		return nil
	}
	w.seen[d.QualifiedName] = true

	d.IsPolymorphic = hasVptr || len(vt.VirtualFunctions) > 0 || vt.HasVirtualBase
	if d.IsPolymorphic {
		vt.PointerOffset = 0
		d.VTable = &vt
	}
	d.IsStandardLayout = !d.IsPolymorphic

	d.Alignment = maxAlign
	if a, ok := e.Val(dwarf.AttrAlignment).(int64); ok && a > 0 {
		d.Alignment = uint64(a)
	}
	d.Members = settleBases(d.Members)
	d.UsefulSize = d.ComputeUsefulSize()

	w.out = append(w.out, d)
	w.out = append(w.out, nested...)
	return nil
}

// member converts a DW_TAG_member. vptr reports a compiler-generated vtable
// pointer, which is not returned as a member. ok is false for members that
// have no storage in the record (static data members, vtable pointers).
func (w *walker) member(c *dwarf.Entry, index int) (m layout.Member, vptr, ok bool, err error) {
	name, _ := c.Val(dwarf.AttrName).(string)
	if strings.HasPrefix(name, "_vptr") {
		return m, true, false, nil
	}
	if artificial, _ := c.Val(dwarf.AttrArtificial).(bool); artificial {
		return m, false, false, nil
	}
	if decl, _ := c.Val(dwarf.AttrDeclaration).(bool); decl {
		return m, false, false, nil // static member
	}
	if name == "" {
		name = fmt.Sprintf("(anonymous %d)", index)
	}

	t, err := w.typeOf(c)
	if err != nil {
		return m, false, false, err
	}

	m = layout.Member{
		Name:      name,
		Type:      t.String(),
		Size:      typeSize(t),
		Alignment: w.alignOf(c, t),
	}

	loc, err := memberLocation(c)
	if err != nil {
		return m, false, false, err
	}
	offsetBits := loc * 8

	if bits, isBitfield := c.Val(dwarf.AttrBitSize).(int64); isBitfield {
		width, err := safecast.Conv[uint32](bits)
		if err != nil {
			return m, false, false, err
		}
		m.IsBitfield = true
		m.BitfieldWidth = width

		if dbo, ok := c.Val(dwarf.AttrDataBitOffset).(int64); ok {
			u, err := safecast.Conv[uint64](dbo)
			if err != nil {
				return m, false, false, err
			}
			offsetBits = u
		} else if bo, ok := c.Val(dwarf.AttrBitOffset).(int64); ok {
			// DWARF 2/3: counted from the most significant bit of the storage unit.
			storage := m.Size
			if bs, ok := c.Val(dwarf.AttrByteSize).(int64); ok && bs > 0 {
				storage = uint64(bs)
			}
			if lsb := int64(storage*8) - bo - bits; lsb >= 0 {
				offsetBits += uint64(lsb)
			}
		}
	}

	m.Offset = offsetBits / 8
	if m.IsBitfield {
		m.BitfieldOffset = uint32(offsetBits % 8)
	}
	return m, false, true, nil
}

type inheritance struct {
	member  layout.Member
	virtual bool
	dynamic bool // the base needs a vtable pointer
	placed  bool // member is part of the record's member list
}

// base converts a DW_TAG_inheritance into a member standing for the base
// subobject. Virtual bases are reported but not placed. A dynamic base at
// offset 0 shares its vtable pointer with the derived record, so the member
// starts after that pointer; a base holding nothing else is not placed.
func (w *walker) base(c *dwarf.Entry) (inheritance, error) {
	if v, _ := c.Val(dwarf.AttrVirtuality).(int64); v != 0 {
		return inheritance{virtual: true, dynamic: true}, nil
	}

	off, ok := c.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return inheritance{}, errors.New("base class without type")
	}
	t, err := w.data.Type(off)
	if err != nil {
		return inheritance{}, err
	}
	dynamic, err := w.dynamic(off, 0)
	if err != nil {
		return inheritance{}, err
	}

	name := t.String()
	if st, ok := dwarf.Type(t).(*dwarf.StructType); ok && st.StructName != "" {
		name = st.StructName
	}

	loc, err := memberLocation(c)
	if err != nil {
		return inheritance{}, err
	}

	b := inheritance{
		dynamic: dynamic,
		placed:  true,
		member: layout.Member{
			Name:      "<" + name + ">",
			Type:      "base " + name,
			Offset:    loc,
			Size:      typeSize(t),
			Alignment: w.alignOf(c, t),
			IsBase:    true,
		},
	}
	if dynamic && loc == 0 {
		if b.member.Size <= w.ptrSize {
			b.placed = false
		} else {
			b.member.Offset = w.ptrSize
			b.member.Size -= w.ptrSize
		}
	}
	return b, nil
}

// dynamic reports whether the record type at off needs a vtable pointer: it
// has one of its own, declares virtual functions, has a virtual base, or
// inherits from a record that does.
func (w *walker) dynamic(off dwarf.Offset, depth int) (bool, error) {
	if v, ok := w.dyn[off]; ok {
		return v, nil
	}
	if depth > 32 {
		return false, nil
	}

	r := w.data.Reader()
	r.Seek(off)
	e, err := r.Next()
	if err != nil || e == nil {
		return false, err
	}

	switch e.Tag {
	case dwarf.TagTypedef, dwarf.TagConstType, dwarf.TagVolatileType:
		next, ok := e.Val(dwarf.AttrType).(dwarf.Offset)
		if !ok {
			return false, nil
		}
		return w.dynamic(next, depth+1)
	case dwarf.TagStructType, dwarf.TagClassType:
	default:
		return false, nil
	}

	found := false
	for e.Children && !found {
		c, err := r.Next()
		if err != nil {
			return false, err
		}
		if c == nil || c.Tag == 0 {
			break
		}

		switch c.Tag {
		case dwarf.TagMember:
			name, _ := c.Val(dwarf.AttrName).(string)
			found = strings.HasPrefix(name, "_vptr")
		case dwarf.TagSubprogram:
			v, _ := c.Val(dwarf.AttrVirtuality).(int64)
			found = v != 0
		case dwarf.TagInheritance:
			if v, _ := c.Val(dwarf.AttrVirtuality).(int64); v != 0 {
				found = true
			} else if next, ok := c.Val(dwarf.AttrType).(dwarf.Offset); ok {
				if found, err = w.dynamic(next, depth+1); err != nil {
					return false, err
				}
			}
		}
		if c.Children {
			r.SkipChildren()
		}
	}

	w.dyn[off] = found
	return found, nil
}

// settleBases sorts members by offset and trims each base subobject to the
// bytes before the next member, since derived members may reuse a base's tail
// padding. Bases left without bytes (empty bases) are dropped.
func settleBases(members []layout.Member) []layout.Member {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Offset < members[j].Offset
	})

	out := members[:0]
	for i, m := range members {
		if m.IsBase {
			if i+1 < len(members) && members[i+1].Offset < m.End() {
				m.Size = members[i+1].Offset - m.Offset
			}
			if m.Size == 0 {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func (w *walker) typeOf(c *dwarf.Entry) (dwarf.Type, error) {
	off, ok := c.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return nil, errors.New("member without type")
	}
	return w.data.Type(off)
}

// alignOf prefers an explicit DW_AT_alignment and otherwise infers the
// alignment from the type.
func (w *walker) alignOf(c *dwarf.Entry, t dwarf.Type) uint64 {
	if a, ok := c.Val(dwarf.AttrAlignment).(int64); ok && a > 0 {
		return uint64(a)
	}
	return inferAlign(t, w.ptrSize, 0)
}

// inferAlign approximates the ABI alignment of t: scalars align to their
// size (capped at the pointer size on 32-bit targets, 16 otherwise),
// aggregates to their strictest member.
func inferAlign(t dwarf.Type, ptrSize uint64, depth int) uint64 {
	if t == nil || depth > 32 {
		return 1
	}

	switch t := t.(type) {
	case *dwarf.TypedefType:
		return inferAlign(t.Type, ptrSize, depth+1)
	case *dwarf.QualType:
		return inferAlign(t.Type, ptrSize, depth+1)
	case *dwarf.ArrayType:
		return inferAlign(t.Type, ptrSize, depth+1)
	case *dwarf.PtrType, *dwarf.FuncType:
		return ptrSize
	case *dwarf.StructType:
		a := uint64(1)
		for _, f := range t.Field {
			a = max(a, inferAlign(f.Type, ptrSize, depth+1))
		}
		return a
	case *dwarf.ComplexType:
		return scalarAlign(typeSize(t)/2, ptrSize)
	default:
		return scalarAlign(typeSize(t), ptrSize)
	}
}

func scalarAlign(size, ptrSize uint64) uint64 {
	limit := uint64(16)
	if ptrSize == 4 {
		limit = 4
	}
	a := uint64(1)
	for a < size && a < limit {
		a <<= 1
	}
	return a
}

func typeSize(t dwarf.Type) uint64 {
	if s := t.Size(); s > 0 {
		return uint64(s)
	}
	return 0
}

// memberLocation decodes DW_AT_data_member_location, either a constant or a
// DW_OP_plus_uconst expression. Absent locations (union members) are 0.
func memberLocation(c *dwarf.Entry) (uint64, error) {
	switch v := c.Val(dwarf.AttrDataMemberLoc).(type) {
	case nil:
		return 0, nil
	case int64:
		return safecast.Conv[uint64](v)
	case []byte:
		if len(v) > 1 && v[0] == dwOpPlusUconst {
			n, _ := uleb128(v[1:])
			return n, nil
		}
		return 0, fmt.Errorf("unsupported member location expression % x", v)
	default:
		return 0, fmt.Errorf("unexpected member location %T", v)
	}
}

func uleb128(b []byte) (uint64, int) {
	var (
		result uint64
		shift  uint
	)
	for i, c := range b {
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
	}
	return result, len(b)
}

func qualify(scope []string, name string) string {
	var parts []string
	for _, s := range scope {
		if s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, name)
	return strings.Join(parts, "::")
}
