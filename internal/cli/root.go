// Package cli implements the structsight command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ieee-cs-bmsit/structsight/internal/cache"
	"github.com/ieee-cs-bmsit/structsight/internal/config"
	"github.com/ieee-cs-bmsit/structsight/internal/objfile"
	"github.com/ieee-cs-bmsit/structsight/internal/session"
	"github.com/ieee-cs-bmsit/structsight/internal/version"
)

// RootOptions holds global flags for all commands and the configuration
// they resolve to.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"; empty uses the config file
	ConfigPath string
	Color      string // "auto" | "on" | "off"; empty uses the config file

	Config config.Config
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the structsight CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "structsight",
		Short: "Record layout analyzer",
		Long: `structsight measures the memory layout of C, C++ and Go records,
reports padding and suggests member orders that make them smaller.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to "+config.FileName+" (default: search upwards)")
	cmd.PersistentFlags().StringVar(&opts.Color, "color", "", "colorize output (auto|on|off)")

	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewReorderCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// resolve loads the configuration, applies flag overrides and installs the
// logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	var (
		cfg config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.Load(o.ConfigPath)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	if o.Format != "" {
		cfg.Output.Format = o.Format
	}
	if o.Color != "" {
		cfg.Output.Color = o.Color
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	o.Config = cfg
	o.Format = cfg.Output.Format

	color.NoColor = !colorEnabled(cfg.Output.Color, cmd.ErrOrStderr())

	logger := zap.NewNop()
	if o.Verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return WrapExitError(ExitCommandError, "failed to create logger", err)
		}
	}
	o.Logger = logger
	session.SetLogger(logger)
	cache.SetLogger(logger)
	objfile.SetLogger(logger)

	if cfg.Path != "" {
		logger.Debug("loaded configuration", zap.String("path", cfg.Path))
	}
	return nil
}

// colorOut reports whether stdout output should be colored.
func (o *RootOptions) colorOut(cmd *cobra.Command) bool {
	return colorEnabled(o.Config.Output.Color, cmd.OutOrStdout())
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		printError(stderr, err)
	}
	return GetExitCode(err)
}

// Main runs the CLI against the process arguments and standard streams.
func Main() int {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}
