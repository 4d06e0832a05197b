package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dopgraph/internal/document"
	"github.com/roach88/dopgraph/internal/engine"
	"github.com/roach88/dopgraph/internal/loader"
	"github.com/roach88/dopgraph/internal/nodes"
	"github.com/roach88/dopgraph/internal/oplog"
)

// ValidationIssue is one problem found in a document.
type ValidationIssue struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Graphs int               `json:"graphs"`
	Nodes  int               `json:"nodes"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Validate a document without evaluating it",
		Long: `Validate a graph document without evaluating it.

Compiles every graph, collecting all compile errors, then replays the ops
in bulk mode: unknown node types, unknown sockets, type mismatches and
cycles are reported. Nothing is executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	result := validateDocument(path, formatter)
	return outputValidation(formatter, result)
}

func validateDocument(path string, formatter *OutputFormatter) ValidationResult {
	var result ValidationResult

	loaded, loadErrs := loader.Load(path, loader.CollectAll)
	for _, err := range loadErrs {
		result.Errors = append(result.Errors, loadIssue(err))
	}
	if loaded == nil || loaded.Script == nil {
		return result
	}
	formatter.VerboseLog("Compiled %d graph(s) from %d file(s)", len(loaded.Script.Graphs), loaded.FileCount)

	doc := document.New(nodes.NewRegistry())
	if err := oplog.ReplayDocument(doc, loaded.Script, oplog.Bulk); err != nil {
		result.Errors = append(result.Errors, ValidationIssue{
			Code:    errorCode(err),
			Message: err.Error(),
		})
	}

	for _, g := range doc.Graphs() {
		result.Graphs++
		for _, n := range g.Nodes() {
			if n.Forked() {
				continue
			}
			result.Nodes++
			if n.Unresolved {
				result.Errors = append(result.Errors, ValidationIssue{
					Code:    string(engine.ErrCodeUnknownType),
					Path:    fmt.Sprintf("graph.%s.node.%s", g.Name(), n.ID),
					Message: fmt.Sprintf("type %q is not registered", n.Type),
				})
			}
		}
		formatter.VerboseLog("Graph %s: %d node(s), %d edge(s)", g.Name(), g.Len(), g.EdgeCount())
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func loadIssue(err error) ValidationIssue {
	var le *loader.Error
	if errors.As(err, &le) {
		issue := ValidationIssue{Code: le.Code, Path: le.Path, Message: le.Message}
		if le.Pos.IsValid() {
			issue.Line = le.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{Code: loader.ErrCodeGeneric, Message: err.Error()}
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		if err := formatter.Error(result.Errors[0].Code, fmt.Sprintf("%d validation error(s)", len(result.Errors)), result.Errors); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "✓ Valid: %d graph(s), %d node(s)\n", result.Graphs, result.Nodes)
		return nil
	}
	fmt.Fprintf(w, "✗ %d validation error(s):\n", len(result.Errors))
	for _, issue := range result.Errors {
		var where []string
		if issue.Path != "" {
			where = append(where, issue.Path)
		}
		if issue.Line > 0 {
			where = append(where, fmt.Sprintf("line %d", issue.Line))
		}
		loc := ""
		if len(where) > 0 {
			loc = " (" + strings.Join(where, ", ") + ")"
		}
		fmt.Fprintf(w, "  [%s]%s %s\n", issue.Code, loc, issue.Message)
	}
	return NewExitError(ExitFailure, "validation failed")
}
