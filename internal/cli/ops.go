package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dopgraph/internal/oplog"
	"github.com/roach88/dopgraph/internal/store"
)

// OpsOptions holds flags for the ops command.
type OpsOptions struct {
	*RootOptions
	Output   string
	Mode     string
	Database string
	Load     string
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ops [document]",
		Short: "Print the op script of a document",
		Long: `Compile a document, replay it and export the op script that rebuilds it.

The exported script is normalized: nodes come after their producers,
defaults equal to the node type's are omitted and templates precede the
graphs instantiating them. With --db the script is also saved under the
document's name; with --load it is read back from the database instead.

Examples:
  dop ops ./scene.cue
  dop ops ./scene.cue -o scene.json --db ./dop.db
  dop ops --db ./dop.db --load scene`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the script to a file instead of stdout")
	cmd.Flags().StringVar(&opts.Mode, "mode", "checked", "replay mode (checked|bulk)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Load, "load", "", "read the named document from --db")

	return cmd
}

func runOps(opts *OpsOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var script *oplog.Script
	switch {
	case opts.Load != "":
		if opts.Database == "" {
			return NewExitError(ExitCommandError, "--load requires --db")
		}
		if len(args) > 0 {
			return NewExitError(ExitCommandError, "--load takes no document argument")
		}
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		script, err = st.LoadDocument(ctx, opts.Load)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load document %q", opts.Load), err)
		}

	case len(args) == 1:
		doc, _, err := loadDocument(args[0], opts.Mode)
		if err != nil {
			return err
		}
		script = oplog.ExportDocument(doc)
		if opts.Database != "" {
			st, err := store.Open(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()
			if err := st.SaveDocument(ctx, documentName(args[0]), script); err != nil {
				return WrapExitError(ExitCommandError, "failed to save document", err)
			}
		}

	default:
		return NewExitError(ExitCommandError, "a document or --load is required")
	}

	data, err := oplog.EncodeScript(script)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode script", err)
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write script", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d graph(s) to %s\n", len(script.Graphs), opts.Output)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
