// Package run provides the "irkit run" command: the full workbook→deck
// pipeline driven by one job config.
package run

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	appconfig "github.com/klytics/irkit/internal/config"
	"github.com/klytics/irkit/internal/job"
	"github.com/klytics/irkit/internal/output"
)

// NewCommand returns the run subcommand.
func NewCommand() *cobra.Command {
	var (
		configPath string
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline from a job config",
		Long: `Execute one job end to end: fetch the analysis response (unless
--offline), extract text fields and series from the workbook, evaluate
computed fields, render charts, and substitute everything into the deck
template.

Example:
  irkit run -c job.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				app, err := appconfig.Load()
				if err != nil {
					return err
				}
				configPath = app.Job
			}

			cfg, err := job.Load(configPath)
			if err != nil {
				return err
			}
			if offline {
				cfg.APIURL = ""
			}

			res, err := job.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			jsonFlag, _ := cmd.Flags().GetBool("json")
			if jsonFlag {
				return output.PrintJSON("run", res)
			}

			color.New(color.FgGreen).Printf("Wrote %s\n", res.Output)
			if res.FetchedAPI {
				fmt.Println("  Analysis:    fetched and persisted")
			}
			if len(res.ChartsRendered) > 0 {
				fmt.Printf("  Charts:      %d rendered\n", len(res.ChartsRendered))
			}
			fmt.Printf("  Text fields: %d", len(res.TextFields))
			if len(res.LLMFields) > 0 {
				fmt.Printf(" (%d from analysis)", len(res.LLMFields))
			}
			fmt.Println()
			if res.Summary != nil {
				fmt.Printf("  Substituted: %d text, %d pictures, %d placeholders\n",
					res.Summary.TextReplaced, res.Summary.PicturesReplaced,
					res.Summary.PlaceholdersReplaced)
				if len(res.Summary.MissingFiles) > 0 {
					color.New(color.FgYellow).Printf("  Missing images: %s\n",
						strings.Join(res.Summary.MissingFiles, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Job config file (default: from app config)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the analysis service; reuse the persisted response")

	return cmd
}
