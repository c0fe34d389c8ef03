package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ieee-cs-bmsit/structsight/internal/layout"
	"github.com/ieee-cs-bmsit/structsight/internal/objfile"
	"github.com/ieee-cs-bmsit/structsight/internal/parser"
	"github.com/ieee-cs-bmsit/structsight/internal/session"
)

// ReorderOptions holds flags for the reorder command.
type ReorderOptions struct {
	*RootOptions
	Struct   string
	Arch     string
	Compiler string
	Flags    []string
	Write    bool
}

// rewriter reorders the members of one record in a source file.
type rewriter func(src []byte, record string, order []string) ([]byte, error)

func rewriterFor(path string) (rewriter, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".go":
		return parser.Reorder, true
	case cSourceExts[ext]:
		return objfile.Reorder, true
	}
	return nil, false
}

// NewReorderCommand creates the reorder command.
func NewReorderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReorderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reorder <file>",
		Short: "Rewrite a struct in its suggested member order",
		Long: `Reorder analyzes one record of a Go or C/C++ source file and prints the
file with the record's fields rewritten in the suggested order. Comments
(and Go tags) move with their fields; C++ base classes keep their place.
With --write the file is updated in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReorder(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Struct, "struct", "s", "", "struct to reorder (required)")
	cmd.Flags().StringVar(&opts.Arch, "arch", "", "target architecture (x86|x64)")
	cmd.Flags().StringVar(&opts.Compiler, "compiler", "", "compiler (gcc|clang|msvc|gc|gccgo)")
	cmd.Flags().StringArrayVar(&opts.Flags, "flag", nil, "extra compiler flag (repeatable)")
	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "write the result to the file instead of stdout")
	_ = cmd.MarkFlagRequired("struct")

	return cmd
}

func runReorder(opts *ReorderOptions, path string, cmd *cobra.Command) error {
	rewrite, ok := rewriterFor(path)
	if !ok {
		return NewExitError(ExitCommandError, "reorder only rewrites Go and C/C++ source files")
	}
	ex, err := extractorFor(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "unsupported input", err)
	}

	analyzeOpts := &AnalyzeOptions{
		RootOptions: opts.RootOptions,
		Struct:      opts.Struct,
		Arch:        opts.Arch,
		Compiler:    opts.Compiler,
		Flags:       opts.Flags,
	}
	req, err := analyzeOpts.buildRequest(cmd, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read source", err)
	}
	req.Source = src

	res := session.New(ex, session.Options{}).Analyze(cmd.Context(), req)
	if !res.Success {
		return WrapExitError(ExitFailure, "analysis failed", errors.New(res.ErrorMessage))
	}
	if len(res.Layouts) == 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("struct %s not found in %s", opts.Struct, path))
	}

	d := res.Layouts[0]
	var order []string
	for _, s := range d.Optimizations {
		if s.Kind == layout.Reorder {
			order = s.SuggestedOrder
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: reordering saves %d bytes (%d -> %d)\n",
				d.Name, s.BytesSaved, d.TotalSize, d.TotalSize-s.BytesSaved)
			break
		}
	}

	out := src
	if order == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: no smaller member order found, source unchanged\n", d.Name)
	} else {
		out, err = rewrite(src, d.Name, order)
		if err != nil {
			return WrapExitError(ExitFailure, "rewrite failed", err)
		}
	}

	if opts.Write {
		if order == nil {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to stat source", err)
		}
		if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
			return WrapExitError(ExitFailure, "failed to write source", err)
		}
		return nil
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}
