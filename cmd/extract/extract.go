// Package extract provides the "irkit extract" command: labeled series out
// of a workbook, as JSON.
package extract

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/irkit/internal/extract"
)

// NewCommand returns the extract subcommand.
func NewCommand() *cobra.Command {
	var (
		workbook   string
		specsFile  string
		specTokens []string
		sheet      string
		strict     bool
		meta       bool
		lowercase  bool
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract labeled series from a workbook as JSON",
		Long: `Read label and value ranges from an .xlsx workbook and emit them as a
JSON object keyed by series id.

Specs come from a JSON file (--specs) or inline tokens (--spec), which use
colon-separated fields: id:labels:values, optionally with a leading sheet
name and a trailing options segment.

Example:
  irkit extract -w resultados.xlsx --specs specs.json --sheet "DRE Saida"
  irkit extract -w resultados.xlsx --spec 'lucro:C3:D3:C18:D18'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workbook == "" {
				return fmt.Errorf("missing workbook — pass -w <file.xlsx>")
			}
			if specsFile == "" && len(specTokens) == 0 {
				return fmt.Errorf("nothing to extract — pass --specs <file.json> or --spec <token>")
			}

			var specs []extract.Spec
			if specsFile != "" {
				parsed, err := extract.ParseSpecsFile(specsFile)
				if err != nil {
					return err
				}
				specs = parsed
			}
			if len(specTokens) > 0 {
				parsed, err := extract.ParseSpecTokens(specTokens, sheet)
				if err != nil {
					return err
				}
				specs = append(specs, parsed...)
			}

			result, err := extract.ExtractFile(workbook, specs, extract.Options{
				DefaultSheet:    sheet,
				StrictNumbers:   strict,
				IncludeMeta:     meta,
				LowercaseFields: lowercase,
			})
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if outPath != "" {
				if err := os.WriteFile(outPath, data, 0644); err != nil {
					return err
				}
				color.New(color.FgGreen).Printf("Wrote %d series to %s\n", result.Len(), outPath)
				return nil
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&workbook, "workbook", "w", "", "Workbook file (.xlsx)")
	cmd.Flags().StringVar(&specsFile, "specs", "", "Series specs JSON file")
	cmd.Flags().StringArrayVar(&specTokens, "spec", nil, "Inline spec token (repeatable)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Default worksheet for specs without one")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on non-numeric value cells instead of null")
	cmd.Flags().BoolVar(&meta, "meta", false, "Include sheet and range metadata per series")
	cmd.Flags().BoolVar(&lowercase, "lowercase", false, "Lowercase JSON field names")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write JSON to a file instead of stdout")

	return cmd
}
