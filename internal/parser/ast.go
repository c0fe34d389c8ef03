package parser

import (
	"context"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"

	"fortio.org/safecast"

	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// Extractor measures the struct types declared in a Go source file using the
// layout rules of the gc or gccgo toolchain.
type Extractor struct{}

var _ extract.Extractor = Extractor{}

// Extract implements extract.Extractor. Source takes precedence over
// FilePath; FilePath is still used for positions in error messages.
func (Extractor) Extract(ctx context.Context, req extract.Request) ([]layout.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := req.Source
	if src == nil {
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", req.FilePath, err)
		}
		src = data
	}

	filename := req.FilePath
	if filename == "" {
		filename = "input.go"
	}

	ds, err := ParseSource(filename, src, req.Arch, req.Compiler)
	if err != nil {
		return nil, err
	}
	return extract.Filter(ds, req.StructName), nil
}

// ParseFile reads and measures a Go source file.
func ParseFile(filename string, arch layout.Architecture, compiler layout.Compiler) ([]layout.Descriptor, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return ParseSource(filename, src, arch, compiler)
}

// ParseSource type-checks src and returns one descriptor per non-generic
// named struct type, in declaration order.
func ParseSource(filename string, src []byte, arch layout.Architecture, compiler layout.Compiler) ([]layout.Descriptor, error) {
	sizes, err := sizesFor(arch, compiler)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrCompile, err)
	}

	conf := types.Config{
		Importer: importer.ForCompiler(fset, "source", nil),
		Sizes:    sizes,
	}
	info := &types.Info{Defs: make(map[*ast.Ident]types.Object)}
	pkg, err := conf.Check(file.Name.Name, fset, []*ast.File{file}, info)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrCompile, err)
	}

	return extractTypes(file, pkg, info, sizes)
}

func sizesFor(arch layout.Architecture, compiler layout.Compiler) (types.Sizes, error) {
	name := "gc"
	switch compiler {
	case layout.GC, "":
	case layout.GCCGo, layout.GCC:
		name = "gccgo"
	default:
		return nil, fmt.Errorf("%w: compiler %q cannot lay out Go types", extract.ErrUnsupported, compiler)
	}

	sizes := types.SizesFor(name, arch.GOARCH())
	if sizes == nil {
		return nil, fmt.Errorf("%w: no sizes for %s/%s", extract.ErrUnsupported, name, arch.GOARCH())
	}
	return sizes, nil
}

func extractTypes(file *ast.File, pkg *types.Package, info *types.Info, sizes types.Sizes) ([]layout.Descriptor, error) {
	var out []layout.Descriptor

	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}

		for _, spec := range genDecl.Specs {
			typeSpec := spec.(*ast.TypeSpec)
			if _, ok := typeSpec.Type.(*ast.StructType); !ok {
				continue // Not a struct
			}
			if typeSpec.TypeParams != nil {
				continue // Generic: no layout until instantiated
			}

			doc := typeSpec.Doc
			if doc == nil && len(genDecl.Specs) == 1 {
				doc = genDecl.Doc
			}
			if anno := extractAnnotation(doc); anno != nil && anno.Skip {
				continue
			}

			obj, ok := info.Defs[typeSpec.Name].(*types.TypeName)
			if !ok {
				continue
			}

			d, err := describe(obj, pkg, sizes)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", typeSpec.Name.Name, err)
			}
			out = append(out, d)
		}
	}

	return out, nil
}

func describe(obj *types.TypeName, pkg *types.Package, sizes types.Sizes) (layout.Descriptor, error) {
	st := obj.Type().Underlying().(*types.Struct)

	total, err := safecast.Conv[uint64](sizes.Sizeof(obj.Type()))
	if err != nil {
		return layout.Descriptor{}, err
	}
	align, err := safecast.Conv[uint64](sizes.Alignof(obj.Type()))
	if err != nil {
		return layout.Descriptor{}, err
	}

	d := layout.Descriptor{
		Name:             obj.Name(),
		QualifiedName:    pkg.Name() + "." + obj.Name(),
		TotalSize:        total,
		Alignment:        align,
		IsStandardLayout: true,
	}

	fields := make([]*types.Var, st.NumFields())
	for i := range fields {
		fields[i] = st.Field(i)
	}
	offsets := sizes.Offsetsof(fields)

	qualifier := types.RelativeTo(pkg)
	for i, f := range fields {
		m := layout.Member{
			Name: memberName(f.Name(), i),
			Type: types.TypeString(f.Type(), qualifier),
		}
		if m.Offset, err = safecast.Conv[uint64](offsets[i]); err != nil {
			return layout.Descriptor{}, err
		}
		if m.Size, err = safecast.Conv[uint64](sizes.Sizeof(f.Type())); err != nil {
			return layout.Descriptor{}, err
		}
		if m.Alignment, err = safecast.Conv[uint64](sizes.Alignof(f.Type())); err != nil {
			return layout.Descriptor{}, err
		}
		d.Members = append(d.Members, m)
	}

	d.UsefulSize = d.ComputeUsefulSize()
	return d, nil
}

// memberName gives blank fields a unique name derived from their position.
// The '#' keeps it from colliding with any Go identifier, such as a field
// literally named _1.
func memberName(name string, index int) string {
	if name == "_" {
		return fmt.Sprintf("_#%d", index)
	}
	return name
}

// embeddedName returns the field name Go assigns to an embedded field.
func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.IndexListExpr:
		return embeddedName(t.X)
	default:
		return "?"
	}
}

func extractAnnotation(doc *ast.CommentGroup) *TypeAnnotation {
	if doc == nil {
		return nil
	}

	var lines []string
	for _, comment := range doc.List {
		lines = append(lines, CleanComment(comment.Text))
	}

	anno, found := FindAnnotation(lines)
	if !found {
		return nil
	}
	return anno
}
