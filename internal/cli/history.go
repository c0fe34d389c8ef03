package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ieee-cs-bmsit/structsight/internal/render"
	"github.com/ieee-cs-bmsit/structsight/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [record]",
		Short: "Show recorded analysis runs or the size history of a record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runHistory(opts, name, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "history database (default: [history].database)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of rows (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, name string, cmd *cobra.Command) error {
	dbPath := opts.DB
	if dbPath == "" {
		dbPath = opts.Config.HistoryPath()
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "history is disabled: set [history].database in structsight.toml or pass --db")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	ropts := render.Options{Color: opts.colorOut(cmd)}

	if name == "" {
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return encodeJSON(cmd, runs)
		}
		return render.Runs(out, runs, ropts)
	}

	entries, err := st.History(ctx, name, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read history", err)
	}
	if opts.Format == "json" {
		return encodeJSON(cmd, entries)
	}
	return render.History(out, name, entries, ropts)
}

func encodeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
