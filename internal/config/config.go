// Package config manages application configuration from files and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	// Job is the default job config path used by run/watch when -c is omitted.
	Job          string `mapstructure:"job"`
	DefaultSheet string `mapstructure:"default_sheet"`
	ImagesDir    string `mapstructure:"images_dir"`
	API          struct {
		URL            string `mapstructure:"url"`
		Key            string `mapstructure:"key"`
		FileField      string `mapstructure:"file_field"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"api"`
	Output struct {
		Format string `mapstructure:"format"`
		Color  bool   `mapstructure:"color"`
	} `mapstructure:"output"`
}

// Load reads the configuration from ~/.irkit/config.yaml and environment
// variables (IRKIT_ prefix).
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(Dir())

	setDefaults()

	viper.SetEnvPrefix("IRKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (non-fatal if missing)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("job", "job.yaml")
	viper.SetDefault("api.file_field", "file")
	viper.SetDefault("api.timeout_seconds", 180)
	viper.SetDefault("output.format", "text")
	viper.SetDefault("output.color", true)
}

// Set stores a configuration value and writes the config file.
func Set(key, value string) error {
	if !validKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	viper.Set(key, value)
	return SaveConfig()
}

// Get returns a configuration value as a string.
func Get(key string) string {
	return viper.GetString(key)
}

// SaveConfig writes the current configuration to ~/.irkit/config.yaml.
func SaveConfig() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return viper.WriteConfigAs(ConfigPath())
}

// ResetConfig restores the default configuration and writes it out.
func ResetConfig() error {
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	setDefaults()
	return SaveConfig()
}

// ShowConfig renders the current configuration as readable text.
func ShowConfig() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Config file: %s\n\n", ConfigPath())
	for _, key := range knownKeys {
		val := viper.GetString(key)
		if key == "api.key" && val != "" {
			val = mask(val)
		}
		if val == "" {
			val = "(not set)"
		}
		fmt.Fprintf(&b, "  %-20s %s\n", key, val)
	}
	return b.String()
}

// ToEnv exports the configuration as IRKIT_* environment variable pairs.
func ToEnv() map[string]string {
	env := make(map[string]string)
	for _, key := range knownKeys {
		val := viper.GetString(key)
		if val == "" {
			continue
		}
		name := "IRKIT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		env[name] = val
	}
	return env
}

// Issue is one configuration validation finding.
type Issue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Validate checks the current configuration for problems.
func Validate() []Issue {
	var issues []Issue

	if job := viper.GetString("job"); job != "" {
		if _, err := os.Stat(job); err != nil {
			issues = append(issues, Issue{
				Key:      "job",
				Severity: "warning",
				Message:  fmt.Sprintf("default job config %s does not exist", job),
				Fix:      "run 'irkit config init' to create a starter job config",
			})
		}
	}

	if url := viper.GetString("api.url"); url != "" {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			issues = append(issues, Issue{
				Key:      "api.url",
				Severity: "error",
				Message:  fmt.Sprintf("api.url %q is not an http(s) URL", url),
			})
		}
		if viper.GetString("api.key") == "" && os.Getenv("IRKIT_API_KEY") == "" {
			issues = append(issues, Issue{
				Key:      "api.key",
				Severity: "warning",
				Message:  "api.url is set but no api.key; the analysis service may reject requests",
				Fix:      "irkit config set api.key <key>, or export IRKIT_API_KEY",
			})
		}
	}

	switch f := viper.GetString("output.format"); f {
	case "", "text", "json":
	default:
		issues = append(issues, Issue{
			Key:      "output.format",
			Severity: "error",
			Message:  fmt.Sprintf("output.format must be \"text\" or \"json\", got %q", f),
		})
	}

	return issues
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Dir returns the irkit config directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".irkit"
	}
	return filepath.Join(home, ".irkit")
}

var knownKeys = []string{
	"job",
	"default_sheet",
	"images_dir",
	"api.url",
	"api.key",
	"api.file_field",
	"api.timeout_seconds",
	"output.format",
	"output.color",
}

func validKey(key string) bool {
	i := sort.SearchStrings(sortedKeys, key)
	return i < len(sortedKeys) && sortedKeys[i] == key
}

var sortedKeys = func() []string {
	keys := append([]string(nil), knownKeys...)
	sort.Strings(keys)
	return keys
}()

func mask(s string) string {
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "..." + s[len(s)-3:]
}
