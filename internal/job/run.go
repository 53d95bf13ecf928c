package job

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/klytics/irkit/internal/charts"
	"github.com/klytics/irkit/internal/extract"
	"github.com/klytics/irkit/internal/flatten"
	"github.com/klytics/irkit/internal/llm"
	"github.com/klytics/irkit/internal/substitute"
	"github.com/klytics/irkit/internal/textfields"
	"github.com/klytics/irkit/internal/workbook"
)

// Result reports what one job run produced.
type Result struct {
	Output         string              `json:"output"`
	ChartsRendered []string            `json:"chartsRendered,omitempty"`
	TextFields     map[string]string   `json:"textFields,omitempty"`
	LLMFields      []string            `json:"llmFields,omitempty"`
	FetchedAPI     bool                `json:"fetchedApi,omitempty"`
	Summary        *substitute.Summary `json:"summary"`
}

// Run executes the whole pipeline for one config:
// optional analysis fetch, text-field extraction, computed fields, LLM
// merge (LLM wins), chart rendering, then deck substitution.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	res := &Result{Output: cfg.Output}

	if cfg.APIURL != "" {
		if err := fetchAnalysis(ctx, cfg); err != nil {
			return nil, err
		}
		res.FetchedAPI = true
	}

	mapping := map[string]string{}
	var llmAllow []string
	if cfg.TextFieldsConfig != "" {
		tfCfg, err := textfields.ParseConfigFile(cfg.TextFieldsConfig)
		if err != nil {
			return nil, err
		}
		defaultSheet := tfCfg.DefaultSheet
		if defaultSheet == "" {
			defaultSheet = cfg.DefaultSheet
		}
		mapping, err = textfields.ExtractFile(cfg.Workbook, tfCfg.Specs, defaultSheet)
		if err != nil {
			return nil, err
		}
		llmAllow = tfCfg.LLMFields
	}

	var extracted *extract.Result
	if cfg.SpecsFile != "" {
		specs, err := extract.ParseSpecsFile(cfg.SpecsFile)
		if err != nil {
			return nil, err
		}
		extracted, err = extract.ExtractFile(cfg.Workbook, specs, extract.Options{
			DefaultSheet:    cfg.DefaultSheet,
			IncludeMeta:     true,
			LowercaseFields: true,
		})
		if err != nil {
			return nil, err
		}
	}

	if len(cfg.Computed) > 0 {
		computed, err := EvalComputed(cfg.Computed, ComputedEnv(mapping, extracted))
		if err != nil {
			return nil, err
		}
		for k, v := range computed {
			mapping[k] = v
		}
	}

	if cfg.LLMResponseJSON != "" {
		llmMapping, err := loadLLMMapping(cfg.LLMResponseJSON, llmAllow)
		if err != nil {
			return nil, err
		}
		for k, v := range llmMapping {
			mapping[k] = v // analysis output wins over workbook fields
			res.LLMFields = append(res.LLMFields, k)
		}
		sort.Strings(res.LLMFields)
	}
	res.TextFields = mapping

	if len(cfg.Charts) > 0 {
		rendered, err := RenderCharts(cfg)
		if err != nil {
			return nil, err
		}
		res.ChartsRendered = rendered
	}

	sum, err := substitute.ApplyFile(cfg.Template, cfg.Output, substitute.Options{
		ImagesDir:            cfg.ImagesDir,
		AllowPlaceholderText: cfg.AllowPlaceholderText,
		Mapping:              mapping,
	})
	if err != nil {
		return nil, err
	}
	res.Summary = sum
	return res, nil
}

func fetchAnalysis(ctx context.Context, cfg *Config) error {
	timeout := time.Duration(cfg.APITimeoutSeconds * float64(time.Second))
	client := llm.NewClient(llm.Config{
		URL:       cfg.APIURL,
		FileField: cfg.APIFileField,
		Headers:   cfg.APIHeaders,
		Timeout:   timeout,
	})
	payload, err := client.Analyze(ctx, cfg.Workbook)
	if err != nil {
		return err
	}
	return llm.SaveResponse(cfg.LLMResponseJSON, payload)
}

// loadLLMMapping flattens a persisted analysis response, restricted to the
// allow-list when one is configured.
func loadLLMMapping(path string, allow []string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("analysis response not found: %s — configure api_url or create it", path)
	}
	payload, err := llm.LoadResponse(path)
	if err != nil {
		return nil, err
	}
	mapping := flatten.Flatten(flatten.Unwrap(payload))

	if len(allow) == 0 {
		return mapping, nil
	}
	allowed := make(map[string]bool, len(allow))
	for _, k := range allow {
		allowed[k] = true
	}
	filtered := make(map[string]string)
	for k, v := range mapping {
		if allowed[k] {
			filtered[k] = v
		}
	}
	return filtered, nil
}

// RenderCharts renders every chart the config names, reading the workbook
// once. It returns the output paths in config order.
func RenderCharts(cfg *Config) ([]string, error) {
	wb, err := workbook.OpenFile(cfg.Workbook)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	var rendered []string
	for _, ch := range cfg.Charts {
		sheet := ch.Sheet
		if sheet == "" {
			sheet = cfg.DefaultSheet
		}
		switch ch.Kind {
		case "bar":
			spec := charts.BarSpec{
				Sheet:         sheet,
				ValuesRange:   ch.ValuesRange,
				LabelsRange:   ch.LabelsRange,
				Output:        ch.Output,
				Title:         ch.Title,
				HighlightLast: ch.HighlightLast == nil || *ch.HighlightLast,
				ShowDeltaPct:  ch.ShowDeltaPct,
				DeltaPairs:    ch.DeltaPairs,
				SlotCount:     ch.SlotCount,
			}
			if err := charts.RenderBar(wb, spec); err != nil {
				return nil, err
			}
		case "line":
			spec := charts.LineSpec{
				Sheet:       sheet,
				ValuesRange: ch.ValuesRange,
				LabelsRange: ch.LabelsRange,
				Output:      ch.Output,
				Percent:     ch.Percent,
				Smooth:      ch.Smooth == nil || *ch.Smooth,
			}
			if err := charts.RenderLine(wb, spec); err != nil {
				return nil, err
			}
		}
		rendered = append(rendered, ch.Output)
	}
	return rendered, nil
}
