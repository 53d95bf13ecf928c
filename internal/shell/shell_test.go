package shell

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

func mockRunner(version string) CommandRunner {
	return func(ctx context.Context, args []string, stdout, stderr io.Writer) error {
		if len(args) == 0 {
			return fmt.Errorf("no command")
		}
		switch args[0] {
		case "version":
			fmt.Fprintf(stdout, "irkit %s\n", version)
			return nil
		case "fields":
			fmt.Fprintf(stdout, "args: %s\n", strings.Join(args[1:], " "))
			return nil
		case "run":
			fmt.Fprintf(stdout, "args: %s\n", strings.Join(args[1:], " "))
			return nil
		case "deck":
			if len(args) > 1 && args[1] == "inspect" {
				fmt.Fprintf(stdout, "2 slides\n")
				return nil
			}
			return nil
		case "unknown-command":
			return fmt.Errorf("unknown command: %s", args[0])
		}
		fmt.Fprintf(stdout, "OK\n")
		return nil
	}
}

func TestNewSession(t *testing.T) {
	s, err := NewSession()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.CommandHistory) != 0 {
		t.Errorf("expected empty history, got %d entries", len(s.CommandHistory))
	}
	if s.HistoryFile == "" {
		t.Error("expected history file path to be set")
	}
	if len(s.KnownCommands) == 0 {
		t.Error("expected known commands to be populated")
	}
}

func TestEvalVersion(t *testing.T) {
	DefaultRunner = mockRunner("v1.2.0-test")
	defer func() { DefaultRunner = nil }()

	s, _ := NewSession()
	output, err := s.Eval(context.Background(), "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "v1.2.0-test") {
		t.Errorf("expected version output, got: %q", output)
	}
}

func TestEvalDeckInspect(t *testing.T) {
	DefaultRunner = mockRunner("v1.2.0")
	defer func() { DefaultRunner = nil }()

	s, _ := NewSession()
	output, err := s.Eval(context.Background(), "deck inspect out.pptx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "2 slides") {
		t.Errorf("expected slide count, got: %q", output)
	}
}

func TestEvalInjectsDefaultSheet(t *testing.T) {
	DefaultRunner = mockRunner("v1.2.0")
	defer func() { DefaultRunner = nil }()

	s, _ := NewSession()
	s.DefaultSheet = "DRE Saida"

	output, err := s.Eval(context.Background(), "fields -w in.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "--sheet DRE Saida") {
		t.Errorf("expected injected --sheet flag, got: %q", output)
	}

	// Explicit flag wins.
	output, _ = s.Eval(context.Background(), "fields -w in.xlsx --sheet Outra")
	if strings.Count(output, "--sheet") != 1 {
		t.Errorf("expected a single --sheet flag, got: %q", output)
	}
}

func TestEvalInjectsDefaultJob(t *testing.T) {
	DefaultRunner = mockRunner("v1.2.0")
	defer func() { DefaultRunner = nil }()

	s, _ := NewSession()
	s.DefaultJob = "config/job.yaml"

	output, err := s.Eval(context.Background(), "run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "-c config/job.yaml") {
		t.Errorf("expected injected -c flag, got: %q", output)
	}

	output, _ = s.Eval(context.Background(), "run --config other.yaml")
	if strings.Contains(output, "-c config/job.yaml") {
		t.Errorf("explicit --config should win, got: %q", output)
	}
}

func TestEvalUnknownCommand(t *testing.T) {
	DefaultRunner = mockRunner("v1.2.0")
	defer func() { DefaultRunner = nil }()

	s, _ := NewSession()
	_, err := s.Eval(context.Background(), "unknown-command")
	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestEvalEmpty(t *testing.T) {
	DefaultRunner = mockRunner("v1.2.0")
	defer func() { DefaultRunner = nil }()

	s, _ := NewSession()
	output, err := s.Eval(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "" {
		t.Errorf("expected empty output, got: %q", output)
	}
}

func TestEvalNoRunner(t *testing.T) {
	DefaultRunner = nil
	s, _ := NewSession()
	_, err := s.Eval(context.Background(), "version")
	if err == nil {
		t.Error("expected error when runner is nil")
	}
}

func TestCompleteTopLevel(t *testing.T) {
	s, _ := NewSession()
	matches := s.Complete("ex")
	if len(matches) != 2 {
		t.Fatalf("expected [exit extract], got %v", matches)
	}
	if matches[0] != "exit" || matches[1] != "extract" {
		t.Errorf("expected [exit extract], got %v", matches)
	}
}

func TestCompleteMultipleMatches(t *testing.T) {
	s, _ := NewSession()
	matches := s.Complete("c")
	found := make(map[string]bool)
	for _, m := range matches {
		found[m] = true
	}
	for _, expected := range []string{"charts", "config", "completion"} {
		if !found[expected] {
			t.Errorf("expected %q in completions, got %v", expected, matches)
		}
	}
}

func TestCompleteSubcommand(t *testing.T) {
	s, _ := NewSession()
	matches := s.Complete("deck up")
	if len(matches) != 1 || matches[0] != "update" {
		t.Errorf("expected [update], got %v", matches)
	}
}

func TestCompleteEmpty(t *testing.T) {
	s, _ := NewSession()
	matches := s.Complete("")
	if len(matches) == 0 {
		t.Error("expected all commands for empty input")
	}
}

func TestCompleteUnknownCommand(t *testing.T) {
	s, _ := NewSession()
	matches := s.Complete("zzz ")
	// No subcommands for unknown command
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}
}

func TestLastOutputUpdated(t *testing.T) {
	DefaultRunner = mockRunner("v1.2.0")
	defer func() { DefaultRunner = nil }()

	s, _ := NewSession()

	s.Eval(context.Background(), "version")
	if !strings.Contains(s.LastOutput, "1.2.0") {
		t.Errorf("expected LastOutput to contain version, got: %q", s.LastOutput)
	}

	s.Eval(context.Background(), "deck inspect out.pptx")
	if !strings.Contains(s.LastOutput, "2 slides") {
		t.Errorf("expected LastOutput to be updated, got: %q", s.LastOutput)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{5 * time.Minute, "5m 0s"},
	}
	for _, tc := range tests {
		if got := formatDuration(tc.input); got != tc.expected {
			t.Errorf("formatDuration(%s) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
