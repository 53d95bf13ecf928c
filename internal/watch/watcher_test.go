package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher(t *testing.T) {
	w, err := New(Config{
		Paths:    []string{filepath.Join(t.TempDir(), "resultados.xlsx")},
		Debounce: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if w == nil {
		t.Fatal("expected non-nil watcher")
	}
	w.watcher.Close()
}

func TestNewWatcherRequiresPaths(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty path list")
	}
}

func TestDefaultDebounce(t *testing.T) {
	w, _ := New(Config{Paths: []string{"/tmp/a.xlsx"}, Debounce: 0})
	defer w.watcher.Close()

	if w.Config.Debounce != 750 {
		t.Errorf("expected default debounce 750, got %d", w.Config.Debounce)
	}
}

func TestWatcherTriggersOnTargetWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "resultados.xlsx")
	os.WriteFile(target, []byte("v1"), 0644)

	w, err := New(Config{Paths: []string{target}, Debounce: 50})
	if err != nil {
		t.Fatal(err)
	}

	handlerCalled := make(chan string, 1)
	w.Handler = func(path string) error {
		handlerCalled <- path
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		w.Start(ctx)
	}()

	// Give the watcher time to start
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(target, []byte("v2"), 0644)

	select {
	case path := <-handlerCalled:
		want, _ := filepath.Abs(target)
		if path != want {
			t.Errorf("expected %q, got %q", want, path)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for handler call")
	}

	cancel()
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "resultados.xlsx")
	os.WriteFile(target, []byte("v1"), 0644)

	w, err := New(Config{Paths: []string{target}, Debounce: 50})
	if err != nil {
		t.Fatal(err)
	}

	handlerCalled := false
	w.Handler = func(path string) error {
		handlerCalled = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	// Sibling file and an Office lock file in the same directory.
	os.WriteFile(filepath.Join(dir, "notas.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "~$resultados.xlsx"), []byte("lock"), 0644)
	time.Sleep(200 * time.Millisecond)

	if handlerCalled {
		t.Error("handler should not be called for non-target files")
	}

	cancel()
}

func TestWatcherRecordsErrorEvents(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "in.xlsx")
	os.WriteFile(target, []byte("v1"), 0644)

	w, err := New(Config{Paths: []string{target}, Debounce: 50})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{}, 1)
	w.Handler = func(path string) error {
		done <- struct{}{}
		return os.ErrPermission
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(target, []byte("v2"), 0644)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for handler call")
	}

	// The event is appended after the handler returns.
	deadline := time.Now().Add(time.Second)
	for {
		events := w.GetEvents()
		if len(events) > 0 {
			if events[0].Status != "error" {
				t.Errorf("Status = %q, want error", events[0].Status)
			}
			if events[0].Error == "" {
				t.Error("expected non-empty Error")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no event recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
}

func TestGetStatus(t *testing.T) {
	w, _ := New(Config{Paths: []string{"/tmp/a.xlsx", "/tmp/b.pptx"}})
	defer w.watcher.Close()

	status := w.GetStatus()
	if !status.Running {
		t.Error("expected running=true")
	}
	if len(status.Paths) != 2 {
		t.Errorf("expected 2 paths, got %d", len(status.Paths))
	}
}

func TestEventJSON(t *testing.T) {
	evt := Event{
		Time:   time.Now(),
		Path:   "/tmp/resultados.xlsx",
		Status: "processed",
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Path != "/tmp/resultados.xlsx" {
		t.Errorf("Path = %q", decoded.Path)
	}
	if decoded.Status != "processed" {
		t.Errorf("Status = %q", decoded.Status)
	}
}
