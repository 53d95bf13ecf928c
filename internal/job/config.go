// Package job drives the fixed report pipeline: one config file names the
// workbook, the deck template, and every derived artifact; Run produces the
// updated deck.
package job

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ChartSpec is one chart entry in the job config.
type ChartSpec struct {
	Kind        string `yaml:"kind"` // "bar" or "line"
	Sheet       string `yaml:"sheet"`
	ValuesRange string `yaml:"values_range"`
	LabelsRange string `yaml:"labels_range"`
	Output      string `yaml:"output"`
	Title       string `yaml:"title,omitempty"`

	// Bar options. HighlightLast defaults to true. DeltaPairs narrows the
	// delta annotations to the given index pairs; SlotCount reserves a
	// fixed number of x slots (two-bar 9M comparisons).
	HighlightLast *bool    `yaml:"highlight_last,omitempty"`
	ShowDeltaPct  bool     `yaml:"show_delta_pct,omitempty"`
	DeltaPairs    [][2]int `yaml:"delta_pairs,omitempty"`
	SlotCount     int      `yaml:"slot_count,omitempty"`

	// Line options. Smooth defaults to true.
	Percent bool  `yaml:"percent,omitempty"`
	Smooth  *bool `yaml:"smooth,omitempty"`
}

// Config is a parsed job file. YAML and JSON are both accepted (JSON parses
// as YAML).
type Config struct {
	Workbook             string `yaml:"workbook"`
	Template             string `yaml:"pptx_template"`
	Output               string `yaml:"pptx_output"`
	ImagesDir            string `yaml:"images_dir"`
	AllowPlaceholderText bool   `yaml:"allow_placeholder_text"`
	DefaultSheet         string `yaml:"default_sheet,omitempty"`

	TextFieldsConfig string `yaml:"text_fields_config,omitempty"`
	SpecsFile        string `yaml:"specs,omitempty"`

	Charts []ChartSpec `yaml:"charts,omitempty"`

	APIURL            string            `yaml:"api_url,omitempty"`
	APIFileField      string            `yaml:"api_file_field,omitempty"`
	APIHeaders        map[string]string `yaml:"api_headers,omitempty"`
	APITimeoutSeconds float64           `yaml:"api_timeout_seconds,omitempty"`
	LLMResponseJSON   string            `yaml:"llm_response_json,omitempty"`

	// Computed maps field names to expressions evaluated over the extracted
	// fields and series (see EvalComputed).
	Computed map[string]string `yaml:"computed,omitempty"`
}

// Load reads a job config and resolves its relative paths against the
// config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job config not found: %s — create it once and run again", path)
		}
		return nil, fmt.Errorf("could not read job config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse parses job config bytes without path resolution.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid job config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Workbook == "" {
		return fmt.Errorf("job config is missing 'workbook'")
	}
	if c.Template == "" {
		return fmt.Errorf("job config is missing 'pptx_template'")
	}
	if c.Output == "" {
		return fmt.Errorf("job config is missing 'pptx_output'")
	}
	if c.APIURL != "" && c.LLMResponseJSON == "" {
		return fmt.Errorf("'api_url' also requires 'llm_response_json' to persist the response")
	}
	for i, ch := range c.Charts {
		if ch.Kind != "bar" && ch.Kind != "line" {
			return fmt.Errorf("chart %d: kind must be \"bar\" or \"line\", got %q", i+1, ch.Kind)
		}
		if ch.ValuesRange == "" || ch.LabelsRange == "" || ch.Output == "" {
			return fmt.Errorf("chart %d needs values_range, labels_range and output", i+1)
		}
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Workbook = resolve(c.Workbook)
	c.Template = resolve(c.Template)
	c.Output = resolve(c.Output)
	c.ImagesDir = resolve(c.ImagesDir)
	c.TextFieldsConfig = resolve(c.TextFieldsConfig)
	c.SpecsFile = resolve(c.SpecsFile)
	c.LLMResponseJSON = resolve(c.LLMResponseJSON)
	for i := range c.Charts {
		c.Charts[i].Output = resolve(c.Charts[i].Output)
	}
}

// Starter renders a commented starter config for `irkit config init`.
func Starter() string {
	return `# irkit job config — edit once, then run: irkit run -c job.yaml
workbook: data/resultados.xlsx
pptx_template: templates/apresentacao.pptx
pptx_output: out/apresentacao.pptx
images_dir: out/images
allow_placeholder_text: false
default_sheet: "DRE Saida"

# Workbook-derived text fields (see irkit fields --help for the format).
text_fields_config: config/text_fields.json

# Series extraction specs for the analysis prompt.
specs: config/specs.json

# Charts rendered into images_dir before substitution.
charts:
  - kind: bar
    sheet: "DRE Saida"
    values_range: C18:K18
    labels_range: C3:K3
    output: out/images/01_lucro.png
    show_delta_pct: true
  - kind: line
    sheet: "DRE Saida"
    values_range: C20:K20
    labels_range: C3:K3
    output: out/images/02_roe.png
    percent: true

# Optional analysis service; the response is persisted for offline reruns.
# api_url: https://example.com/analyze
# api_file_field: file
# api_timeout_seconds: 180
# llm_response_json: out/llm_response.json

# Computed fields evaluated over extracted series (LLM fields win on clash).
# computed:
#   VAR_LUCRO: 'pct(last(series.lucroTrimestre.values), prev(series.lucroTrimestre.values))'
`
}
