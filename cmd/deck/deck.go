// Package deck provides CLI commands for working with .pptx presentations.
package deck

import "github.com/spf13/cobra"

// NewCommand returns the deck subcommand group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "Update and inspect PowerPoint presentations (.pptx)",
		Long:  "Commands for working with .pptx decks — substitute text and images into a template, and inspect slides, shapes and placeholders.",
	}

	cmd.AddCommand(newUpdateCommand())
	cmd.AddCommand(newInspectCommand())

	return cmd
}
