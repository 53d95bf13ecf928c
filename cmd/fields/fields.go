// Package fields provides the "irkit fields" command: workbook text fields
// as a key→value mapping.
package fields

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/irkit/internal/textfields"
)

// NewCommand returns the fields subcommand.
func NewCommand() *cobra.Command {
	var (
		workbook   string
		configFile string
		sheet      string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Extract text fields from a workbook",
		Long: `Read the cells and ranges named in a text-fields config and emit them as
a flat key→value mapping. Multi-cell ranges join their non-empty cells with
", ". VAR_* fields missing from the config fall back to single-cell literals.

Example:
  irkit fields -w resultados.xlsx -c text_fields.json --sheet "DRE Saida"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workbook == "" {
				return fmt.Errorf("missing workbook — pass -w <file.xlsx>")
			}
			if configFile == "" {
				return fmt.Errorf("missing config — pass -c <text_fields.json>")
			}

			cfg, err := textfields.ParseConfigFile(configFile)
			if err != nil {
				return err
			}
			defaultSheet := cfg.DefaultSheet
			if sheet != "" {
				defaultSheet = sheet
			}

			mapping, err := textfields.ExtractFile(workbook, cfg.Specs, defaultSheet)
			if err != nil {
				return err
			}

			jsonFlag, _ := cmd.Flags().GetBool("json")
			if jsonFlag || outPath != "" {
				data, err := json.MarshalIndent(mapping, "", "  ")
				if err != nil {
					return err
				}
				data = append(data, '\n')
				if outPath != "" {
					if err := os.WriteFile(outPath, data, 0644); err != nil {
						return err
					}
					color.New(color.FgGreen).Printf("Wrote %d fields to %s\n", len(mapping), outPath)
					return nil
				}
				_, err = os.Stdout.Write(data)
				return err
			}

			keys := make([]string, 0, len(mapping))
			for k := range mapping {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			keyStyle := color.New(color.FgCyan)
			for _, k := range keys {
				keyStyle.Printf("%s", k)
				fmt.Printf(": %s\n", mapping[k])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workbook, "workbook", "w", "", "Workbook file (.xlsx)")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Text-fields config (JSON)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Default worksheet override")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write JSON to a file instead of stdout")

	return cmd
}
