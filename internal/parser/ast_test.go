package parser

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

func TestParseFile(t *testing.T) {
	types, err := ParseFile("testdata/simple.go", layout.X64, layout.GC)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}

	// Should find 2 types: TestStruct and Embedded
	// Ignored has @layout skip, Generic has type parameters
	if len(types) != 2 {
		t.Fatalf("ParseFile() found %d types, want 2", len(types))
	}

	ts := types[0]
	if ts.Name != "TestStruct" || ts.QualifiedName != "testdata.TestStruct" {
		t.Errorf("types[0] = %q (%q), want TestStruct (testdata.TestStruct)", ts.Name, ts.QualifiedName)
	}
	if ts.TotalSize != 24 || ts.Alignment != 8 {
		t.Errorf("TestStruct size/align = %d/%d, want 24/8", ts.TotalSize, ts.Alignment)
	}
	if ts.UsefulSize != 24 {
		t.Errorf("TestStruct.UsefulSize = %d, want 24", ts.UsefulSize)
	}
	if ts.IsPolymorphic || !ts.IsStandardLayout {
		t.Errorf("TestStruct flags: poly=%v std=%v", ts.IsPolymorphic, ts.IsStandardLayout)
	}

	want := []layout.Member{
		{Name: "A", Type: "int8", Offset: 0, Size: 1, Alignment: 1},
		{Name: "B", Type: "int32", Offset: 4, Size: 4, Alignment: 4},
		{Name: "C", Type: "int8", Offset: 8, Size: 1, Alignment: 1},
		{Name: "D", Type: "float64", Offset: 16, Size: 8, Alignment: 8},
	}
	if len(ts.Members) != len(want) {
		t.Fatalf("TestStruct has %d members, want %d", len(ts.Members), len(want))
	}
	for i := range want {
		if ts.Members[i] != want[i] {
			t.Errorf("members[%d] = %+v, want %+v", i, ts.Members[i], want[i])
		}
	}

	emb := types[1]
	if emb.Name != "Embedded" {
		t.Fatalf("types[1].Name = %q, want Embedded", emb.Name)
	}
	if emb.TotalSize != 32 {
		t.Errorf("Embedded.TotalSize = %d, want 32", emb.TotalSize)
	}
	names := emb.MemberNames()
	if len(names) != 3 || names[0] != "TestStruct" || names[1] != "_#1" || names[2] != "Flag" {
		t.Errorf("Embedded members = %v, want [TestStruct _#1 Flag]", names)
	}
	if emb.Members[2].Offset != 27 {
		t.Errorf("Flag offset = %d, want 27", emb.Members[2].Offset)
	}
}

func TestParseFile_32Bit(t *testing.T) {
	types, err := ParseFile("testdata/simple.go", layout.X86, layout.GC)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}

	// gc on 386 aligns 64-bit values to 4 bytes
	ts := types[0]
	if ts.TotalSize != 20 || ts.Alignment != 4 {
		t.Errorf("TestStruct size/align = %d/%d, want 20/4", ts.TotalSize, ts.Alignment)
	}
	if d := ts.Members[3]; d.Offset != 12 || d.Alignment != 4 {
		t.Errorf("D = %+v, want offset 12 align 4", d)
	}
}

func TestParseFile_Imports(t *testing.T) {
	types, err := ParseFile("testdata/complex.go", layout.X64, layout.GC)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if len(types) != 1 {
		t.Fatalf("ParseFile() found %d types, want 1", len(types))
	}

	mu := types[0].Members[1]
	if mu.Name != "mu" || mu.Type != "sync.Mutex" {
		t.Errorf("members[1] = %+v, want mu sync.Mutex", mu)
	}
	if name := types[0].Members[3]; name.Type != "string" || name.Size != 16 {
		t.Errorf("members[3] = %+v, want string of 16 bytes", name)
	}
}

func TestExtractor(t *testing.T) {
	src := []byte(`package p

type A struct {
	X bool
	Y int64
}

type B struct {
	Z int32
}
`)

	ds, err := Extractor{}.Extract(context.Background(), extract.Request{
		Source:     src,
		FilePath:   "p.go",
		StructName: "B",
		Arch:       layout.X64,
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(ds) != 1 || ds[0].Name != "B" || ds[0].TotalSize != 4 {
		t.Errorf("Extract() = %+v, want only B of size 4", ds)
	}
}

func TestExtractor_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		compiler layout.Compiler
		want     error
	}{
		{"syntax", "package p\ntype A struct {", layout.GC, extract.ErrCompile},
		{"type error", "package p\ntype A struct { X Missing }", layout.GC, extract.ErrCompile},
		{"wrong compiler", "package p\ntype A struct{}", layout.MSVC, extract.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extractor{}.Extract(context.Background(), extract.Request{
				Source:   []byte(tt.src),
				Compiler: tt.compiler,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseSource_BlankFieldNames(t *testing.T) {
	src := []byte(`package p

type Shadow struct {
	_1 int8
	_  int64
	_  int8
}
`)
	types, err := ParseSource("shadow.go", src, layout.X64, layout.GC)
	if err != nil {
		t.Fatalf("ParseSource() error: %v", err)
	}
	if len(types) != 1 {
		t.Fatalf("Expected 1 type, got %d", len(types))
	}

	names := types[0].MemberNames()
	want := []string{"_1", "_#1", "_#2"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("MemberNames() = %v, want %v", names, want)
	}
}
