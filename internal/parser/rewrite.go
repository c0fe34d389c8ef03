package parser

import (
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"
)

// fieldText is the source text of one struct field, keyed by member name.
type fieldText struct {
	name string
	text string
}

// Reorder returns src with the fields of the named struct rewritten in the
// given member order. Names follow the extractor's naming: embedded fields
// use their type name and blank fields are "_#<index>". Fields absent from
// order keep their relative order after the listed ones. Grouped fields
// ("a, b int") are split one per line. Free-floating comments inside the
// struct body are dropped.
func Reorder(src []byte, structName string, order []string) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	st := findStruct(file, structName)
	if st == nil {
		return nil, fmt.Errorf("struct %s not found", structName)
	}

	tf := fset.File(file.Pos())
	text := func(from, to token.Pos) string {
		return string(src[tf.Offset(from):tf.Offset(to)])
	}

	// Phase 1: Slice each field's declaration out of the source
	var fields []fieldText
	index := 0
	for _, f := range st.Fields.List {
		typ := text(f.Type.Pos(), f.Type.End())

		var doc, suffix string
		if f.Doc != nil {
			doc = text(f.Doc.Pos(), f.Doc.End()) + "\n"
		}
		if f.Tag != nil {
			suffix += " " + f.Tag.Value
		}
		if f.Comment != nil {
			suffix += " " + text(f.Comment.Pos(), f.Comment.End())
		}

		if len(f.Names) == 0 {
			fields = append(fields, fieldText{embeddedName(f.Type), doc + typ + suffix})
			index++
			continue
		}
		for i, n := range f.Names {
			d := doc
			if i > 0 {
				d = ""
			}
			fields = append(fields, fieldText{memberName(n.Name, index), d + n.Name + " " + typ + suffix})
			index++
		}
	}

	// Phase 2: Arrange in the requested order
	byName := make(map[string]fieldText, len(fields))
	for _, f := range fields {
		byName[f.name] = f
	}

	used := make(map[string]bool, len(order))
	var lines []string
	for _, name := range order {
		f, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("struct %s has no field %q", structName, name)
		}
		if used[name] {
			return nil, fmt.Errorf("field %q listed twice", name)
		}
		used[name] = true
		lines = append(lines, f.text)
	}
	for _, f := range fields {
		if !used[f.name] {
			lines = append(lines, f.text)
		}
	}

	// Phase 3: Splice the new body in and let gofmt align it
	var b strings.Builder
	b.Write(src[:tf.Offset(st.Fields.Opening)])
	b.WriteString("{\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("}")
	b.Write(src[tf.Offset(st.Fields.Closing)+1:])

	out, err := format.Source([]byte(b.String()))
	if err != nil {
		return nil, fmt.Errorf("format rewritten source: %w", err)
	}
	return out, nil
}

func findStruct(file *ast.File, name string) *ast.StructType {
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec := spec.(*ast.TypeSpec)
			if typeSpec.Name.Name != name {
				continue
			}
			if st, ok := typeSpec.Type.(*ast.StructType); ok {
				return st
			}
		}
	}
	return nil
}
