// Package example holds the on-disk page records of a small B+tree. The
// structs are deliberately declared in the order a first draft would use,
// so structsight has something to report.
package example

// PageHeader precedes every page in the file.
type PageHeader struct {
	Flags    uint16
	ID       uint64
	Count    uint16
	Overflow uint32
}

// Page is a raw 4 KiB page.
type Page struct {
	Header PageHeader
	Body   [4064]byte
	Footer uint64
}
