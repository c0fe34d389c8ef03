package parser

import (
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strings"
	"testing"
)

// fieldOrder parses src and returns the field names of the named struct.
func fieldOrder(t *testing.T, src []byte, name string) []string {
	t.Helper()

	file, err := parser.ParseFile(token.NewFileSet(), "", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("Parse error: %v\n%s", err, src)
	}

	st := findStruct(file, name)
	if st == nil {
		t.Fatalf("struct %s not found", name)
	}

	var names []string
	for _, f := range st.Fields.List {
		if len(f.Names) == 0 {
			names = append(names, embeddedName(f.Type))
			continue
		}
		for _, n := range f.Names {
			names = append(names, n.Name)
		}
	}
	return names
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		order     []string
		want      []string
		contains  []string
		wantError bool
	}{
		{
			name: "simple",
			code: `package test

type TestStruct struct {
	a int8
	b int32
	c int8
	d float64
}
`,
			order: []string{"d", "b", "a", "c"},
			want:  []string{"d", "b", "a", "c"},
		},
		{
			name: "keeps tags and comments",
			code: `package test

type Page struct {
	// Flags is the first byte.
	Flags uint8 ` + "`json:\"flags\"`" + `
	ID uint64 // primary key
}
`,
			order:    []string{"ID", "Flags"},
			want:     []string{"ID", "Flags"},
			contains: []string{"// Flags is the first byte.", "`json:\"flags\"`", "// primary key"},
		},
		{
			name: "splits grouped fields",
			code: `package test

type Pair struct {
	x, y int8
	z int64
}
`,
			order: []string{"z", "y", "x"},
			want:  []string{"z", "y", "x"},
		},
		{
			name: "unlisted fields go last",
			code: `package test

type T struct {
	a int8
	b int64
	c int8
}
`,
			order: []string{"b"},
			want:  []string{"b", "a", "c"},
		},
		{
			name: "embedded and blank fields",
			code: `package test

import "sync"

type T struct {
	flag bool
	_ [7]byte
	*sync.Mutex
}
`,
			order: []string{"Mutex", "_#1", "flag"},
			want:  []string{"Mutex", "_", "flag"},
		},
		{
			name: "blank field next to a field named like it",
			code: `package test

type T struct {
	_1 int8
	_  int64
	x  int8
}
`,
			order: []string{"_#1", "_1", "x"},
			want:  []string{"_", "_1", "x"},
		},
		{
			name: "unknown field",
			code: `package test

type T struct {
	a int8
}
`,
			order:     []string{"zz"},
			wantError: true,
		},
		{
			name: "duplicate field",
			code: `package test

type T struct {
	a int8
	b int8
}
`,
			order:     []string{"a", "a"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			structName := "T"
			file, err := parser.ParseFile(token.NewFileSet(), "", tt.code, 0)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			for _, decl := range file.Decls {
				if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
					structName = gd.Specs[0].(*ast.TypeSpec).Name.Name
				}
			}

			out, err := Reorder([]byte(tt.code), structName, tt.order)
			if tt.wantError {
				if err == nil {
					t.Errorf("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Reorder() error: %v", err)
			}

			if got := fieldOrder(t, out, structName); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("field order = %v, want %v\n%s", got, tt.want, out)
			}
			for _, s := range tt.contains {
				if !strings.Contains(string(out), s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestReorder_StructNotFound(t *testing.T) {
	_, err := Reorder([]byte("package p\n\ntype T struct{}\n"), "Missing", nil)
	if err == nil {
		t.Error("Expected error for missing struct")
	}
}
