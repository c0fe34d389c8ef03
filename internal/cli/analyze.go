package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ieee-cs-bmsit/structsight/internal/cache"
	"github.com/ieee-cs-bmsit/structsight/internal/descfile"
	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
	"github.com/ieee-cs-bmsit/structsight/internal/objfile"
	"github.com/ieee-cs-bmsit/structsight/internal/parser"
	"github.com/ieee-cs-bmsit/structsight/internal/render"
	"github.com/ieee-cs-bmsit/structsight/internal/session"
	"github.com/ieee-cs-bmsit/structsight/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Struct   string
	Arch     string
	Compiler string
	Flags    []string
	Jobs     int
	NoCache  bool
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Report the layout, padding and optimizations of records",
		Long: `Analyze measures every record in a file and reports its padding and
optimization suggestions.

The extractor is chosen by extension:
  .go                          Go type checker sizes (gc or gccgo)
  .c .cc .cpp .cxx .h .hpp     compiled with gcc/clang, read from DWARF
  .o                           DWARF of an existing object file
  .yaml .yml .json .cue        descriptor documents`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Struct, "struct", "s", "", "analyze only the named record")
	cmd.Flags().StringVar(&opts.Arch, "arch", "", "target architecture (x86|x64)")
	cmd.Flags().StringVar(&opts.Compiler, "compiler", "", "compiler (gcc|clang|msvc|gc|gccgo)")
	cmd.Flags().StringArrayVar(&opts.Flags, "flag", nil, "extra compiler flag (repeatable)")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "records analyzed in parallel (0 = config or GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "bypass the result cache")

	return cmd
}

var cSourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".h": true, ".hpp": true,
}

// extractorFor picks the extractor handling path.
func extractorFor(path string) (extract.Extractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".go":
		return parser.Extractor{}, nil
	case cSourceExts[ext]:
		return objfile.Extractor{}, nil
	case ext == ".o":
		return extract.Func(func(_ context.Context, req extract.Request) ([]layout.Descriptor, error) {
			ds, err := objfile.ReadObject(req.FilePath)
			if err != nil {
				return nil, err
			}
			return extract.Filter(ds, req.StructName), nil
		}), nil
	}
	if _, ok := descfile.FormatFor(path); ok {
		return descfile.Extractor{}, nil
	}
	return nil, fmt.Errorf("%w: no extractor for %q files", extract.ErrUnsupported, ext)
}

// buildRequest merges flags over the configuration.
func (o *AnalyzeOptions) buildRequest(cmd *cobra.Command, path string) (extract.Request, error) {
	cfg := o.Config
	req := extract.Request{
		FilePath:   path,
		StructName: o.Struct,
		Flags:      cfg.Analysis.Flags,
	}

	archName := cfg.Analysis.Architecture
	if o.Arch != "" {
		archName = o.Arch
	}
	arch, err := layout.ParseArchitecture(archName)
	if err != nil {
		return req, err
	}
	req.Arch = arch

	compilerName := cfg.Analysis.Compiler
	if o.Compiler != "" {
		compilerName = o.Compiler
	}
	compiler, err := layout.ParseCompiler(compilerName)
	if err != nil {
		return req, err
	}

	if strings.EqualFold(filepath.Ext(path), ".go") && compiler != layout.GC && compiler != layout.GCCGo {
		if cmd.Flags().Changed("compiler") {
			return req, fmt.Errorf("compiler %s cannot measure Go records (want gc or gccgo)", compiler)
		}
		compiler = layout.GC
	}
	req.Compiler = compiler

	if len(o.Flags) > 0 {
		req.Flags = append(append([]string(nil), req.Flags...), o.Flags...)
	}
	return req, nil
}

func runAnalyze(ctx context.Context, opts *AnalyzeOptions, path string, cmd *cobra.Command) error {
	req, err := opts.buildRequest(cmd, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	ex, err := extractorFor(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "unsupported input", err)
	}

	sessOpts := session.Options{Jobs: opts.Config.Analysis.Jobs}
	if opts.Jobs > 0 {
		sessOpts.Jobs = opts.Jobs
	}

	if opts.Config.Cache.Enabled && !opts.NoCache {
		ttl, _ := opts.Config.CacheTTL()
		c, err := cache.Open(opts.Config.Cache.Dir, ttl)
		if err != nil {
			// Analysis still works without a cache.
			opts.Logger.Warn("cache disabled", zap.Error(err))
		} else {
			sessOpts.Cache = c
		}
	}

	if dbPath := opts.Config.HistoryPath(); dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer st.Close()
		sessOpts.History = st
	}

	res := session.New(ex, sessOpts).Analyze(ctx, req)

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := render.JSON(out, res); err != nil {
			return err
		}
	} else if res.Success {
		if err := render.Text(out, res, render.Options{Color: opts.colorOut(cmd)}); err != nil {
			return err
		}
	}

	if !res.Success {
		exitErr := WrapExitError(ExitFailure, "analysis failed", errors.New(res.ErrorMessage))
		exitErr.Reported = opts.Format == "json"
		return exitErr
	}
	return nil
}
