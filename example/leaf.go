package example

// LeafHeader is the fixed prefix of a leaf page.
type LeafHeader struct {
	NumKeys  uint16
	NextPage uint64
	Flags    uint16
	PrevPage uint64
}

// LeafElement locates one key/value pair inside a leaf page.
type LeafElement struct {
	Flags uint32
	Pos   uint32
	KSize uint32
	VSize uint32
}

// LeafNode is the decoded form of a leaf page.
type LeafNode struct {
	Header   LeafHeader
	Dirty    bool
	Elements []LeafElement
	Footer   uint64
}
