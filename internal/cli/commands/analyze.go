package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/columnci/internal/analyze"
	"github.com/leapstack-labs/columnci/internal/cli/config"
	"github.com/leapstack-labs/columnci/pkg/dialect"
	"github.com/leapstack-labs/columnci/pkg/diff"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewAnalyzeCommand creates the analyze command: compare two SQL files
// locally, without touching dbt Cloud.
func NewAnalyzeCommand() *cobra.Command {
	var uniqueID string

	cmd := &cobra.Command{
		Use:   "analyze <source.sql> <target.sql>",
		Short: "Classify the changes between two versions of a model",
		Long: `Parse both SQL files, diff them, and report every breaking change
with the output column it affects. Useful for checking what CI would
decide before opening a pull request.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			logger := config.GetLogger(cmd.Context())

			d, err := dialect.Get(cfg.Dialect)
			if err != nil {
				return err
			}

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}
			target, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read target: %w", err)
			}

			node := analyze.NewNode(uniqueID, string(source), string(target), d, logger)
			renderNode(cmd, node)
			return nil
		},
	}

	cmd.Flags().StringVar(&uniqueID, "unique-id", "model.project.model", "Unique ID to report the model under")
	return cmd
}

// renderNode prints the classification for one node.
func renderNode(cmd *cobra.Command, node *analyze.Node) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	if term.IsTerminal(int(os.Stdout.Fd())) {
		t.SetStyle(table.StyleLight)
	}
	t.AppendHeader(table.Row{"Edit", "Expression", "Column"})

	for _, bc := range node.BreakingChanges {
		column := "-"
		if name, ok := bc.ColumnName(); ok {
			column = name
		}
		t.AppendRow(table.Row{editKind(bc.Edit), bc.Edit.Expression().String(), column})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model: %s\n", node.UniqueID)
	fmt.Fprintf(out, "Edits: %d total, %d breaking\n", len(node.Changes), len(node.BreakingChanges))

	if len(node.BreakingChanges) > 0 {
		t.Render()
	}

	if node.IgnoreColumnChanges {
		fmt.Fprintln(out, "Result: structural change, every downstream model is impacted")
		return
	}
	if len(node.ColumnChanges) == 0 {
		fmt.Fprintln(out, "Result: no breaking changes, every downstream model can be excluded")
		return
	}

	columns := make([]string, 0, len(node.ColumnChanges))
	for name := range node.ColumnChanges {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	fmt.Fprintf(out, "Result: column-level changes: %v\n", columns)
}

// editKind names an edit for display.
func editKind(e diff.Edit) string {
	switch e.(type) {
	case *diff.Insert:
		return "insert"
	case *diff.Remove:
		return "remove"
	case *diff.Update:
		return "update"
	case *diff.Move:
		return "move"
	default:
		return "unknown"
	}
}
