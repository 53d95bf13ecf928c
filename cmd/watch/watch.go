// Package watch provides the "irkit watch" command: re-run a job whenever
// its input files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	appconfig "github.com/klytics/irkit/internal/config"
	"github.com/klytics/irkit/internal/job"
	w "github.com/klytics/irkit/internal/watch"
)

// NewCommand creates the "watch" command.
func NewCommand() *cobra.Command {
	var (
		configPath string
		debounce   int
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run a job whenever its inputs change",
		Long: `Watch the workbook, deck template, and field configs named by a job
config, and re-run the pipeline after every save. Outputs (the rendered deck,
chart images, the persisted analysis response) are not watched, so a run
never triggers itself.

Example:
  irkit watch -c job.yaml`,
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

			paths := jobInputs(cfg, configPath)
			watcher, err := w.New(w.Config{Paths: paths, Debounce: debounce})
			if err != nil {
				return err
			}

			watcher.Handler = func(path string) error {
				fmt.Printf("Change in %s — running job\n", path)
				// Reload so config edits take effect without a restart.
				current, err := job.Load(configPath)
				if err != nil {
					return err
				}
				if offline {
					current.APIURL = ""
				}
				res, err := job.Run(cmd.Context(), current)
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Printf("Wrote %s\n", res.Output)
				return nil
			}

			fmt.Printf("Watching %d file(s):\n  %s\n",
				len(paths), strings.Join(paths, "\n  "))
			fmt.Println("Press Ctrl+C to stop")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("\nStopping watcher...")
				cancel()
			}()

			return watcher.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Job config file (default: from app config)")
	cmd.Flags().IntVar(&debounce, "debounce", 750, "Debounce interval in milliseconds")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the analysis service on each run")

	return cmd
}

// jobInputs lists the files whose changes should trigger a re-run. The
// template is included unless the job updates it in place; the output deck
// and chart images never are.
func jobInputs(cfg *job.Config, configPath string) []string {
	paths := []string{configPath, cfg.Workbook}
	if cfg.Template != cfg.Output {
		paths = append(paths, cfg.Template)
	}
	if cfg.TextFieldsConfig != "" {
		paths = append(paths, cfg.TextFieldsConfig)
	}
	if cfg.SpecsFile != "" {
		paths = append(paths, cfg.SpecsFile)
	}
	return paths
}
