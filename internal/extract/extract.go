// Package extract defines the boundary between layout extraction (compilers,
// debug info, hand-written documents) and the analyzer.
package extract

import (
	"context"
	"errors"

	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

var (
	// ErrCompile reports that the input could not be compiled or type-checked.
	ErrCompile = errors.New("compilation failed")

	// ErrUnsupported reports an input or toolchain the extractor cannot handle.
	ErrUnsupported = errors.New("unsupported input")
)

// Request carries everything an extractor needs to measure records.
type Request struct {
	Source     []byte
	FilePath   string
	StructName string // Empty selects every record
	Arch       layout.Architecture
	Compiler   layout.Compiler
	Flags      []string // Extra compiler flags
}

// Extractor produces measured, declaration-ordered record descriptors.
// Padding and Optimizations are left empty for the analyzer to fill.
type Extractor interface {
	Extract(ctx context.Context, req Request) ([]layout.Descriptor, error)
}

// Func adapts a function to the Extractor interface.
type Func func(ctx context.Context, req Request) ([]layout.Descriptor, error)

func (f Func) Extract(ctx context.Context, req Request) ([]layout.Descriptor, error) {
	return f(ctx, req)
}

// Static returns fixed descriptors regardless of the request, filtered by
// StructName.
type Static []layout.Descriptor

func (s Static) Extract(_ context.Context, req Request) ([]layout.Descriptor, error) {
	return Filter(s, req.StructName), nil
}

// Filter keeps descriptors whose Name or QualifiedName equals name. An empty
// name keeps everything.
func Filter(ds []layout.Descriptor, name string) []layout.Descriptor {
	if name == "" {
		return ds
	}
	var out []layout.Descriptor
	for _, d := range ds {
		if d.Name == name || d.QualifiedName == name {
			out = append(out, d)
		}
	}
	return out
}
