package deck

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	deckpkg "github.com/klytics/irkit/internal/deck"
	"github.com/klytics/irkit/internal/output"
	"github.com/klytics/irkit/internal/substitute"
)

func newUpdateCommand() *cobra.Command {
	var (
		template        string
		outPath         string
		mappingFile     string
		imagesDir       string
		placeholderText bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Substitute text and images into a deck template",
		Long: `Apply a key→value mapping and an images directory to a .pptx template.

Pictures whose alt text names a file in the images directory are swapped in
place. {{token}} placeholders are replaced inside text shapes, and VAR_*
values render as colored delta indicators. When --output equals the template
the deck is updated in place.

Example:
  irkit deck update -t apresentacao.pptx -o out.pptx --map fields.json --images out/images`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if template == "" {
				return fmt.Errorf("missing template — pass -t <file.pptx>")
			}
			if outPath == "" {
				outPath = template
			}

			mapping := map[string]string{}
			if mappingFile != "" {
				data, err := os.ReadFile(mappingFile)
				if err != nil {
					return fmt.Errorf("could not read mapping %s: %w", mappingFile, err)
				}
				if err := json.Unmarshal(data, &mapping); err != nil {
					return fmt.Errorf("invalid mapping %s: %w", mappingFile, err)
				}
			}

			sum, err := substitute.ApplyFile(template, outPath, substitute.Options{
				ImagesDir:            imagesDir,
				AllowPlaceholderText: placeholderText,
				Mapping:              mapping,
			})
			if err != nil {
				return err
			}

			remaining, err := remainingTokens(outPath)
			if err != nil {
				return err
			}

			jsonFlag, _ := cmd.Flags().GetBool("json")
			if jsonFlag {
				return output.PrintJSON("deck update", map[string]any{
					"output":          outPath,
					"summary":         sum,
					"remainingTokens": remaining,
				})
			}

			color.New(color.FgGreen).Printf("Updated %s\n", outPath)
			fmt.Printf("  Text fields:   %d replaced", sum.TextReplaced)
			if sum.ParagraphFallbacks > 0 {
				fmt.Printf(" (%d paragraph rebuilds)", sum.ParagraphFallbacks)
			}
			fmt.Println()
			fmt.Printf("  Pictures:      %d swapped, %d placeholders filled\n",
				sum.PicturesReplaced, sum.PlaceholdersReplaced)
			if len(sum.MissingFiles) > 0 {
				color.New(color.FgYellow).Printf("  Missing images: %s\n",
					strings.Join(sum.MissingFiles, ", "))
			}
			if len(remaining) > 0 {
				color.New(color.FgYellow).Printf("  Unresolved tokens: %s\n",
					strings.Join(remaining, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "", "Deck template (.pptx)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output deck (default: update in place)")
	cmd.Flags().StringVar(&mappingFile, "map", "", "Key→value mapping JSON file")
	cmd.Flags().StringVar(&imagesDir, "images", "", "Directory with replacement images")
	cmd.Flags().BoolVar(&placeholderText, "allow-placeholder-text", false,
		"Replace text shapes whose whole text is an image file name")

	return cmd
}

// remainingTokens lists the {{token}} placeholders still present in the
// written deck, so unmapped keys surface right after an update.
func remainingTokens(path string) ([]string, error) {
	d, err := deckpkg.Open(path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var tokens []string
	for _, name := range d.SlideNames() {
		xml, err := d.Slide(name)
		if err != nil {
			return nil, err
		}
		for _, sh := range deckpkg.Shapes(xml) {
			if sh.Kind != deckpkg.ShapeText {
				continue
			}
			for _, token := range tokensIn(deckpkg.Text(sh.XML)) {
				if !seen[token] {
					seen[token] = true
					tokens = append(tokens, token)
				}
			}
		}
	}
	sort.Strings(tokens)
	return tokens, nil
}
