package llm

import (
	"encoding/json"
	"fmt"

	"github.com/klytics/irkit/internal/extract"
)

// promptInstructions is the fixed preamble for narrative generation. The
// extracted series JSON is appended below it.
const promptInstructions = `You are a financial communications writer for quarterly earnings decks.
You receive extracted workbook series as JSON: each entry has "labels",
"values", the source "sheet" and "ranges". Write one title and one subtitle
per slide.

Respond with this JSON schema and nothing else:
{
  "titles": {
    "slide1_title": "...",
    "slide2_title": "..."
  },
  "subtitles": {
    "slide1_subtitle": "...",
    "slide2_subtitle": "..."
  }
}

Rules:
- Always respond with valid JSON; no text outside it.
- All values must be strings, field names in camelCase.
- Use a comma as the decimal separator.
- Titles state the headline number and its change versus the previous
  period; subtitles add one sentence of business context.
- When a value needed for a computation is missing, use null for that field.`

// BuildPrompt renders the analysis prompt for an extraction result.
func BuildPrompt(result *extract.Result) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("could not encode extraction result: %w", err)
	}
	return promptInstructions + "\n\nExtracted data:\n" + string(data), nil
}
