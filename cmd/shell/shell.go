// Package shell provides the "irkit shell" interactive REPL command.
package shell

import (
	"fmt"

	"github.com/spf13/cobra"

	shellpkg "github.com/klytics/irkit/internal/shell"
)

// NewCommand creates the "shell" command.
func NewCommand() *cobra.Command {
	var (
		evalCmd      string
		defaultSheet string
		defaultJob   string
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive irkit shell",
		Long: `Start an interactive REPL with persistent state and tab completion.

Session defaults (worksheet, job config) set with 'set sheet' and 'set job'
are injected into every command that accepts them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := shellpkg.NewSession()
			if err != nil {
				return err
			}
			if defaultSheet != "" {
				session.DefaultSheet = defaultSheet
			}
			if defaultJob != "" {
				session.DefaultJob = defaultJob
			}
			if evalCmd != "" {
				output, err := session.Eval(cmd.Context(), evalCmd)
				if err != nil {
					return err
				}
				fmt.Print(output)
				return nil
			}
			return session.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&evalCmd, "eval", "", "Run a single command and exit")
	cmd.Flags().StringVar(&defaultSheet, "sheet", "", "Default worksheet for the session")
	cmd.Flags().StringVar(&defaultJob, "job", "", "Default job config for the session")
	return cmd
}
