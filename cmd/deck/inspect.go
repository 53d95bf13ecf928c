package deck

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	deckpkg "github.com/klytics/irkit/internal/deck"
	"github.com/klytics/irkit/internal/output"
)

var inspectTokenPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

type slideReport struct {
	Slide  string        `json:"slide"`
	Shapes []shapeReport `json:"shapes"`
}

type shapeReport struct {
	Kind    string   `json:"kind"`
	AltText string   `json:"altText,omitempty"`
	Text    string   `json:"text,omitempty"`
	Tokens  []string `json:"tokens,omitempty"`
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.pptx>",
		Short: "List slides, shapes, alt texts and placeholders in a deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deckpkg.Open(args[0])
			if err != nil {
				return err
			}

			reports, err := inspectDeck(d)
			if err != nil {
				return err
			}

			jsonFlag, _ := cmd.Flags().GetBool("json")
			if jsonFlag {
				return output.PrintJSON("deck inspect", reports)
			}

			text := renderReports(args[0], reports)
			if output.ShouldPage(text, 40) {
				return output.Page(text)
			}
			fmt.Print(text)
			return nil
		},
	}
}

func inspectDeck(d *deckpkg.Deck) ([]slideReport, error) {
	var reports []slideReport
	for _, name := range d.SlideNames() {
		xml, err := d.Slide(name)
		if err != nil {
			return nil, err
		}

		report := slideReport{Slide: name}
		for _, sh := range deckpkg.Shapes(xml) {
			sr := shapeReport{AltText: deckpkg.AltText(sh.XML)}
			switch sh.Kind {
			case deckpkg.ShapePicture:
				sr.Kind = "picture"
			case deckpkg.ShapeText:
				sr.Kind = "text"
				sr.Text = strings.TrimSpace(deckpkg.Text(sh.XML))
				sr.Tokens = tokensIn(sr.Text)
			}
			report.Shapes = append(report.Shapes, sr)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func tokensIn(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, m := range inspectTokenPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			tokens = append(tokens, m[1])
		}
	}
	sort.Strings(tokens)
	return tokens
}

func renderReports(path string, reports []slideReport) string {
	var b strings.Builder
	header := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintf(&b, "%s — %d slide(s)\n\n", path, len(reports))
	for _, r := range reports {
		header.Fprintf(&b, "%s\n", r.Slide)
		if len(r.Shapes) == 0 {
			dim.Fprintln(&b, "  (no shapes)")
			continue
		}
		for _, sh := range r.Shapes {
			fmt.Fprintf(&b, "  [%s]", sh.Kind)
			if sh.AltText != "" {
				fmt.Fprintf(&b, " alt=%q", sh.AltText)
			}
			if sh.Text != "" {
				fmt.Fprintf(&b, " %q", truncate(sh.Text, 60))
			}
			if len(sh.Tokens) > 0 {
				fmt.Fprintf(&b, " tokens: %s", strings.Join(sh.Tokens, ", "))
			}
			fmt.Fprintln(&b)
		}
		fmt.Fprintln(&b)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
