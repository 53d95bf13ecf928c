// Package watch monitors a job's input files and triggers a re-run when one
// of them changes. Directories are watched rather than the files themselves
// because Excel and PowerPoint save through rename-replace.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds the watcher configuration.
type Config struct {
	// Paths are the files whose changes trigger the handler.
	Paths []string
	// Debounce is how long to wait after the last event before processing,
	// in milliseconds. Office apps fire several events per save.
	Debounce int
}

// Event records one handled file change.
type Event struct {
	Time   time.Time `json:"time"`
	Path   string    `json:"path"`
	Status string    `json:"status"` // "processed" or "error"
	Error  string    `json:"error,omitempty"`
}

// Handler is called with the changed path once the debounce window closes.
type Handler func(path string) error

// Status reports what the watcher is doing.
type Status struct {
	Running    bool     `json:"running"`
	Paths      []string `json:"paths"`
	EventCount int      `json:"eventCount"`
}

// Watcher monitors the configured files.
type Watcher struct {
	Config  Config
	Logger  *log.Logger
	Handler Handler

	mu       sync.Mutex
	events   []Event
	watcher  *fsnotify.Watcher
	debounce map[string]*time.Timer
	targets  map[string]bool
}

// New creates a Watcher. Debounce defaults to 750ms.
func New(config Config) (*Watcher, error) {
	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("nothing to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	if config.Debounce <= 0 {
		config.Debounce = 750
	}
	return &Watcher{
		Config:   config,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
		watcher:  fsw,
		debounce: make(map[string]*time.Timer),
		targets:  make(map[string]bool),
	}, nil
}

// Start begins watching. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for _, p := range w.Config.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", p, err)
		}
		w.targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("could not watch %s: %w", dir, err)
		}
	}

	w.Logger.Printf("Watching %d file(s) in %d directory(ies)", len(w.targets), len(dirs))

	for {
		select {
		case <-ctx.Done():
			w.Logger.Println("Stopping watcher")
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Printf("Error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	path := event.Name

	// Office lock and temp files.
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~") {
		return
	}

	abs, err := filepath.Abs(path)
	if err != nil || !w.targets[abs] {
		return
	}

	w.mu.Lock()
	if timer, ok := w.debounce[abs]; ok {
		timer.Stop()
	}
	w.debounce[abs] = time.AfterFunc(time.Duration(w.Config.Debounce)*time.Millisecond, func() {
		w.processFile(abs)
	})
	w.mu.Unlock()
}

func (w *Watcher) processFile(path string) {
	evt := Event{Time: time.Now(), Path: path, Status: "processed"}

	if w.Handler != nil {
		if err := w.Handler(path); err != nil {
			evt.Status = "error"
			evt.Error = err.Error()
			w.Logger.Printf("Error processing %s: %v", path, err)
		} else {
			w.Logger.Printf("Processed %s", path)
		}
	}

	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

// GetStatus returns the current watcher status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Running:    true,
		Paths:      w.Config.Paths,
		EventCount: len(w.events),
	}
}

// GetEvents returns all recorded events.
func (w *Watcher) GetEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}
