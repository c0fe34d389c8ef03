package layout

import (
	"fmt"
	"strings"
)

// Architecture selects the pointer width of the analysis target.
type Architecture int

const (
	X64 Architecture = iota // 64-bit
	X86                     // 32-bit
)

// PointerSize returns the size in bytes of a data pointer (and of a vtable
// pointer) on the architecture.
func (a Architecture) PointerSize() uint64 {
	if a == X86 {
		return 4
	}
	return 8
}

// GOARCH returns the Go architecture name with the same pointer width.
func (a Architecture) GOARCH() string {
	if a == X86 {
		return "386"
	}
	return "amd64"
}

func (a Architecture) String() string {
	if a == X86 {
		return "x86"
	}
	return "x64"
}

// ParseArchitecture accepts x86/386/i386/ia32 and x64/amd64/x86_64.
func ParseArchitecture(s string) (Architecture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x64", "amd64", "x86_64", "":
		return X64, nil
	case "x86", "386", "i386", "ia32":
		return X86, nil
	default:
		return X64, fmt.Errorf("unknown architecture %q (want x86 or x64)", s)
	}
}

// Compiler identifies the compiler whose layout rules an extractor should
// follow. The analyzer never looks at it.
type Compiler string

const (
	Clang Compiler = "clang"
	GCC   Compiler = "gcc"
	MSVC  Compiler = "msvc"
	GC    Compiler = "gc"    // Go toolchain
	GCCGo Compiler = "gccgo" // Go frontend of GCC
)

// Compilers lists the accepted compiler identities.
var Compilers = []Compiler{Clang, GCC, MSVC, GC, GCCGo}

// ParseCompiler returns the compiler named by s; empty selects Clang.
func ParseCompiler(s string) (Compiler, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Clang, nil
	}
	for _, c := range Compilers {
		if string(c) == s {
			return c, nil
		}
	}
	return Clang, fmt.Errorf("unknown compiler %q (want one of %v)", s, Compilers)
}
