package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func setupTestConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	setDefaults()

	// Override the config dir for tests
	os.Setenv("HOME", dir)
	t.Cleanup(func() {
		viper.Reset()
	})
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.FileField != "file" {
		t.Errorf("default api.file_field = %q", cfg.API.FileField)
	}
	if cfg.API.TimeoutSeconds != 180 {
		t.Errorf("default api.timeout_seconds = %d", cfg.API.TimeoutSeconds)
	}
	if !cfg.Output.Color {
		t.Error("default output.color should be true")
	}
}

func TestValidateBadAPIURL(t *testing.T) {
	setupTestConfig(t)
	viper.Set("api.url", "ftp://analyzer.example.com")

	issues := Validate()
	hasError := false
	for _, issue := range issues {
		if issue.Key == "api.url" && issue.Severity == "error" {
			hasError = true
		}
	}
	if !hasError {
		t.Error("expected error about non-http api.url")
	}
}

func TestValidateMissingAPIKeyWarning(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("IRKIT_API_KEY", "")
	viper.Set("api.url", "https://analyzer.example.com/analyze")
	viper.Set("api.key", "")

	issues := Validate()
	hasWarning := false
	for _, issue := range issues {
		if issue.Key == "api.key" && issue.Severity == "warning" {
			hasWarning = true
		}
	}
	if !hasWarning {
		t.Error("expected warning about missing api.key")
	}
}

func TestValidateBadOutputFormat(t *testing.T) {
	setupTestConfig(t)
	viper.Set("output.format", "xml")

	issues := Validate()
	hasError := false
	for _, issue := range issues {
		if issue.Key == "output.format" && issue.Severity == "error" {
			hasError = true
		}
	}
	if !hasError {
		t.Error("expected error about output.format")
	}
}

func TestToEnv(t *testing.T) {
	setupTestConfig(t)
	viper.Set("default_sheet", "DRE Saida")
	viper.Set("api.url", "https://analyzer.example.com/analyze")

	env := ToEnv()
	if env["IRKIT_DEFAULT_SHEET"] != "DRE Saida" {
		t.Errorf("IRKIT_DEFAULT_SHEET = %q", env["IRKIT_DEFAULT_SHEET"])
	}
	if env["IRKIT_API_URL"] != "https://analyzer.example.com/analyze" {
		t.Errorf("IRKIT_API_URL = %q", env["IRKIT_API_URL"])
	}
}

func TestSetAndGet(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("HOME", dir)
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(filepath.Join(dir, ".irkit"))

	os.MkdirAll(filepath.Join(dir, ".irkit"), 0700)

	if err := Set("default_sheet", "DRE Saida"); err != nil {
		t.Fatal(err)
	}

	got := Get("default_sheet")
	if got != "DRE Saida" {
		t.Errorf("Get(default_sheet) = %q, want %q", got, "DRE Saida")
	}
}

func TestSetUnknownKey(t *testing.T) {
	setupTestConfig(t)
	if err := Set("no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowConfigMasksKey(t *testing.T) {
	setupTestConfig(t)
	viper.Set("api.key", "secret-token-12345")
	viper.Set("default_sheet", "DRE Saida")

	output := ShowConfig()
	if strings.Contains(output, "secret-token-12345") {
		t.Error("ShowConfig must not print the raw api.key")
	}
	if !strings.Contains(output, "DRE Saida") {
		t.Error("ShowConfig should contain default_sheet")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.Contains(path, ".irkit") || !strings.Contains(path, "config.yaml") {
		t.Errorf("unexpected path: %q", path)
	}
}

func TestResetConfig(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("HOME", dir)
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.Set("api.file_field", "planilha")
	SaveConfig()

	if err := ResetConfig(); err != nil {
		t.Fatal(err)
	}

	if viper.GetString("api.file_field") != "file" {
		t.Errorf("api.file_field should reset to default, got %q", viper.GetString("api.file_field"))
	}
}
