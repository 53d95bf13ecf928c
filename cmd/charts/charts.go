// Package charts provides CLI commands for rendering workbook series as
// chart images.
package charts

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/irkit/internal/charts"
	"github.com/klytics/irkit/internal/job"
)

// NewCommand returns the charts subcommand group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "charts",
		Short: "Render workbook series as chart images (PNG)",
		Long:  "Read label and value ranges from a workbook and render them as bar or line charts, styled for deck substitution.",
	}

	cmd.AddCommand(newBarCommand())
	cmd.AddCommand(newLineCommand())
	cmd.AddCommand(newAllCommand())

	return cmd
}

func newAllCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Render every chart a job config names",
		Long: `Render all chart entries from a job config without running the rest of
the pipeline. Useful for iterating on chart styling.

Example:
  irkit charts all -c job.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("missing job config — pass -c <job.yaml>")
			}
			cfg, err := job.Load(configPath)
			if err != nil {
				return err
			}
			rendered, err := job.RenderCharts(cfg)
			if err != nil {
				return err
			}
			for _, path := range rendered {
				color.New(color.FgGreen).Printf("Rendered %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Job config file")
	return cmd
}

func newBarCommand() *cobra.Command {
	var (
		workbook    string
		sheet       string
		values      string
		labels      string
		outPath     string
		title       string
		noHighlight bool
		deltaPct    bool
	)

	cmd := &cobra.Command{
		Use:   "bar",
		Short: "Render a bar chart",
		Long: `Render the series as vertical bars. The last bar is highlighted unless
--no-highlight-last is set; --delta-pct annotates the change between the two
final periods.

Example:
  irkit charts bar -w resultados.xlsx --sheet "DRE Saida" \
    --values C18:K18 --labels C3:K3 -o out/images/01_lucro.png --delta-pct`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireChartFlags(workbook, values, labels, outPath); err != nil {
				return err
			}
			err := charts.RenderBarFile(workbook, charts.BarSpec{
				Sheet:         sheet,
				ValuesRange:   values,
				LabelsRange:   labels,
				Output:        outPath,
				Title:         title,
				HighlightLast: !noHighlight,
				ShowDeltaPct:  deltaPct,
			})
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Printf("Rendered %s\n", outPath)
			return nil
		},
	}

	addChartFlags(cmd, &workbook, &sheet, &values, &labels, &outPath)
	cmd.Flags().StringVar(&title, "title", "", "Chart title")
	cmd.Flags().BoolVar(&noHighlight, "no-highlight-last", false, "Do not highlight the last bar")
	cmd.Flags().BoolVar(&deltaPct, "delta-pct", false, "Annotate the last-period percent change")

	return cmd
}

func newLineCommand() *cobra.Command {
	var (
		workbook string
		sheet    string
		values   string
		labels   string
		outPath  string
		percent  bool
		noSmooth bool
	)

	cmd := &cobra.Command{
		Use:   "line",
		Short: "Render a line chart",
		Long: `Render the series as a smoothed line with point markers and value
labels. --percent formats the values as percentages.

Example:
  irkit charts line -w resultados.xlsx --sheet "DRE Saida" \
    --values C20:K20 --labels C3:K3 -o out/images/02_roe.png --percent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireChartFlags(workbook, values, labels, outPath); err != nil {
				return err
			}
			err := charts.RenderLineFile(workbook, charts.LineSpec{
				Sheet:       sheet,
				ValuesRange: values,
				LabelsRange: labels,
				Output:      outPath,
				Percent:     percent,
				Smooth:      !noSmooth,
			})
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Printf("Rendered %s\n", outPath)
			return nil
		},
	}

	addChartFlags(cmd, &workbook, &sheet, &values, &labels, &outPath)
	cmd.Flags().BoolVar(&percent, "percent", false, "Format values as percentages")
	cmd.Flags().BoolVar(&noSmooth, "no-smooth", false, "Connect points with straight segments")

	return cmd
}

func addChartFlags(cmd *cobra.Command, workbook, sheet, values, labels, outPath *string) {
	cmd.Flags().StringVarP(workbook, "workbook", "w", "", "Workbook file (.xlsx)")
	cmd.Flags().StringVar(sheet, "sheet", "", "Worksheet name")
	cmd.Flags().StringVar(values, "values", "", "Values range (e.g. C18:K18)")
	cmd.Flags().StringVar(labels, "labels", "", "Labels range (e.g. C3:K3)")
	cmd.Flags().StringVarP(outPath, "output", "o", "", "Output image path (.png)")
}

func requireChartFlags(workbook, values, labels, outPath string) error {
	if workbook == "" {
		return fmt.Errorf("missing workbook — pass -w <file.xlsx>")
	}
	if values == "" || labels == "" {
		return fmt.Errorf("missing ranges — pass --values and --labels")
	}
	if outPath == "" {
		return fmt.Errorf("missing output — pass -o <file.png>")
	}
	return nil
}
