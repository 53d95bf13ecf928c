// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for irkit.

Install instructions:
  Bash:       irkit completion bash > /etc/bash_completion.d/irkit
              echo 'source <(irkit completion bash)' >> ~/.bashrc
  Zsh:        irkit completion zsh > ~/.zsh/completions/_irkit
  Fish:       irkit completion fish > ~/.config/fish/completions/irkit.fish
  PowerShell: irkit completion powershell >> $PROFILE`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				fmt.Fprintln(os.Stdout, "# irkit bash completion")
				fmt.Fprintln(os.Stdout, "# Install: irkit completion bash > /etc/bash_completion.d/irkit")
				fmt.Fprintln(os.Stdout, "# Or:      echo 'source <(irkit completion bash)' >> ~/.bashrc")
				fmt.Fprintln(os.Stdout)
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				fmt.Fprintln(os.Stdout, "# irkit zsh completion")
				fmt.Fprintln(os.Stdout, "# Install: irkit completion zsh > ~/.zsh/completions/_irkit")
				fmt.Fprintln(os.Stdout)
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				fmt.Fprintln(os.Stdout, "# irkit fish completion")
				fmt.Fprintln(os.Stdout, "# Install: irkit completion fish > ~/.config/fish/completions/irkit.fish")
				fmt.Fprintln(os.Stdout)
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				fmt.Fprintln(os.Stdout, "# irkit PowerShell completion")
				fmt.Fprintln(os.Stdout, "# Install: irkit completion powershell >> $PROFILE")
				fmt.Fprintln(os.Stdout)
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0])
			}
		},
	}
	return cmd
}
