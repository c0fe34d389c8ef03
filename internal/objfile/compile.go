// Package objfile measures C and C++ records from the DWARF debug
// information a compiler emits, so layouts follow that compiler's ABI.
package objfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// CompileError carries the diagnostics of a failed compiler run.
type CompileError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CompileError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v\n%s", e.Command, e.Err, msg)
}

func (e *CompileError) Unwrap() []error {
	return []error{extract.ErrCompile, e.Err}
}

// Extractor compiles the request source to an object file and reads its
// DWARF. Command overrides the compiler executable chosen from the request.
type Extractor struct {
	Command string
}

var _ extract.Extractor = Extractor{}

// Extract implements extract.Extractor.
func (e Extractor) Extract(ctx context.Context, req extract.Request) ([]layout.Descriptor, error) {
	src := req.Source
	if src == nil {
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", req.FilePath, err)
		}
		src = data
	}

	dir, err := os.MkdirTemp("", "structsight-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	name := "input.cpp"
	if req.FilePath != "" {
		name = filepath.Base(req.FilePath)
	}
	srcPath := filepath.Join(dir, name)
	if err := os.WriteFile(srcPath, src, 0o644); err != nil {
		return nil, err
	}
	objPath := filepath.Join(dir, "out.o")

	bin := e.Command
	if bin == "" {
		bin = CompilerCommand(req.Compiler, isC(name))
	}
	args := CompileArgs(req, srcPath, objPath)

	Logger().Debug("compiling",
		zap.String("command", bin),
		zap.Strings("args", args),
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CompileError{Command: bin, Stderr: stderr.String(), Err: err}
		}
		return nil, fmt.Errorf("%w: run %s: %v", extract.ErrUnsupported, bin, err)
	}

	ds, err := ReadObject(objPath)
	if err != nil {
		return nil, err
	}
	return extract.Filter(ds, req.StructName), nil
}

// CompilerCommand returns the driver executable for a compiler identity.
// MSVC layouts are approximated with clang in Microsoft compatibility mode.
func CompilerCommand(c layout.Compiler, cSource bool) string {
	switch c {
	case layout.GCC:
		if cSource {
			return "gcc"
		}
		return "g++"
	default:
		if cSource {
			return "clang"
		}
		return "clang++"
	}
}

// CompileArgs returns the driver arguments producing an object file with
// complete debug type information.
func CompileArgs(req extract.Request, srcPath, objPath string) []string {
	args := []string{"-c", "-g", "-fno-eliminate-unused-debug-types"}

	if isC(srcPath) {
		args = append(args, "-x", "c")
	} else {
		args = append(args, "-x", "c++", "-std=c++17")
	}

	if req.Arch == layout.X86 {
		args = append(args, "-m32")
	} else {
		args = append(args, "-m64")
	}

	if req.Compiler == layout.MSVC {
		args = append(args, "-fms-compatibility", "-fms-extensions")
	}

	args = append(args, req.Flags...)
	return append(args, "-o", objPath, srcPath)
}

func isC(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".c")
}
