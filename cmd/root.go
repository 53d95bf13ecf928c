// Package cmd contains all CLI commands for the irkit binary.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/irkit/cmd/charts"
	"github.com/klytics/irkit/cmd/completion"
	cmdconfig "github.com/klytics/irkit/cmd/config"
	"github.com/klytics/irkit/cmd/deck"
	cmdextract "github.com/klytics/irkit/cmd/extract"
	"github.com/klytics/irkit/cmd/fields"
	"github.com/klytics/irkit/cmd/run"
	cmdshell "github.com/klytics/irkit/cmd/shell"
	"github.com/klytics/irkit/cmd/version"
	cmdwatch "github.com/klytics/irkit/cmd/watch"
	"github.com/klytics/irkit/internal/shell"
)

var (
	jsonOutput bool
	verbose    bool
	noColor    bool
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "irkit",
		Short: "Investor-relations deck automation from Excel workbooks",
		Long: `irkit — quarterly results decks straight from the workbook.

Extract labeled series and text fields from .xlsx models, render charts,
and substitute text, delta indicators and images into .pptx templates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	// Global persistent flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")

	// Register subcommands
	rootCmd.AddCommand(cmdextract.NewCommand())
	rootCmd.AddCommand(fields.NewCommand())
	rootCmd.AddCommand(deck.NewCommand())
	rootCmd.AddCommand(charts.NewCommand())
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(cmdshell.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command and handles any returned errors.
func Execute() {
	shell.DefaultRunner = runInProcess

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// runInProcess executes one irkit command inside the current process. The
// shell uses it so session commands skip process startup.
func runInProcess(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
