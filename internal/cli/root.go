package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dopgraph/internal/document"
	"github.com/roach88/dopgraph/internal/loader"
	"github.com/roach88/dopgraph/internal/nodes"
	"github.com/roach88/dopgraph/internal/oplog"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dop CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dop",
		Short: "dop - dataflow operator graphs",
		Long:  "Evaluate procedural node graphs frame by frame, with memoized pull evaluation and subgraph instancing.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewOpsCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadDocument loads path and replays it into a document over the
// built-in node types. Load failures carry the loader's error code.
func loadDocument(path, modeName string) (*document.Document, *oplog.Script, error) {
	mode, err := oplog.ParseMode(modeName)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid --mode", err)
	}
	res, errs := loader.Load(path, loader.FailFast)
	if len(errs) > 0 {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load document", errs[0])
	}
	doc, err := loader.Build(nodes.NewRegistry(), res.Script, mode)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "failed to build document", err)
	}
	return doc, res.Script, nil
}
