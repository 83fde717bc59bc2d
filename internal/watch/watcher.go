// Package watch monitors inbox directories and hands each new or changed
// spreadsheet to a handler, typically a job runner.
package watch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Config selects what to watch.
type Config struct {
	Directories []string      `json:"directories"`
	Recursive   bool          `json:"recursive"`
	Pattern     string        `json:"pattern,omitempty"` // glob on the base name, e.g. "sales_*"
	Debounce    time.Duration `json:"debounce"`
}

// Event is a handled, failed or skipped file. Events live in memory only.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"` // "processed", "error", "skipped"
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  string    `json:"duration,omitempty"`
}

// Handler processes one spreadsheet.
type Handler func(ctx context.Context, path string) error

// Status is a snapshot of a running watcher.
type Status struct {
	Running     bool      `json:"running"`
	Directories []string  `json:"directories"`
	Processed   int       `json:"processed"`
	Errors      int       `json:"errors"`
	Skipped     int       `json:"skipped"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
}

// Watcher monitors directories for spreadsheet changes.
type Watcher struct {
	Config  Config
	Logger  *log.Logger
	Handler Handler

	mu       sync.Mutex
	events   []Event
	running  bool
	started  time.Time
	watcher  *fsnotify.Watcher
	debounce map[string]*time.Timer
	busy     map[string]bool
	outputs  map[string]bool
	wg       sync.WaitGroup
}

// New creates a watcher. Call Start to begin.
func New(cfg Config, handler Handler) (*Watcher, error) {
	if len(cfg.Directories) == 0 {
		return nil, fmt.Errorf("no directories to watch")
	}
	if cfg.Pattern != "" {
		if _, err := filepath.Match(cfg.Pattern, ""); err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", cfg.Pattern, err)
		}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	return &Watcher{
		Config:   cfg,
		Logger:   log.New(io.Discard, "", 0),
		Handler:  handler,
		watcher:  fsw,
		debounce: make(map[string]*time.Timer),
		busy:     make(map[string]bool),
		outputs:  make(map[string]bool),
	}, nil
}

// IgnoreOutput marks path as written by the handler. Events on it are
// skipped so outputs saved into a watched directory are not fed back in.
func (w *Watcher) IgnoreOutput(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	w.mu.Lock()
	if w.outputs == nil {
		w.outputs = make(map[string]bool)
	}
	w.outputs[path] = true
	w.mu.Unlock()
}

func (w *Watcher) isOutput(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outputs[path]
}

// Start watches until ctx is cancelled, then waits for in-flight handlers.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.Config.Directories {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}
		if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
			w.watcher.Close()
			return fmt.Errorf("%s is not a directory", dir)
		}
		if w.Config.Recursive {
			err = w.addRecursive(absDir)
		} else {
			err = w.watcher.Add(absDir)
		}
		if err != nil {
			w.watcher.Close()
			return fmt.Errorf("could not watch %s: %w", absDir, err)
		}
	}

	w.mu.Lock()
	w.running = true
	w.started = time.Now()
	w.mu.Unlock()
	w.Logger.Printf("Watching %d directory(ies)", len(w.Config.Directories))

	defer func() {
		w.mu.Lock()
		w.running = false
		for path, t := range w.debounce {
			if t.Stop() {
				w.wg.Done()
			}
			delete(w.debounce, path)
		}
		w.mu.Unlock()
		w.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Println("Stopping watcher")
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Printf("Error: %v", err)
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if w.Config.Recursive && event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.Logger.Printf("Could not watch %s: %v", event.Name, err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	path := event.Name
	if !isSpreadsheetExt(path) {
		return
	}
	if reason := w.skipReason(path); reason != "" {
		w.record(Event{Time: time.Now(), Path: path, Operation: event.Op.String(), Status: "skipped", Reason: reason})
		return
	}

	op := event.Op.String()
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if timer, ok := w.debounce[path]; !ok || !timer.Stop() {
		w.wg.Add(1)
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.Config.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.debounce[path] == timer {
			delete(w.debounce, path)
		}
		w.mu.Unlock()
		w.processFile(ctx, path, op)
	})
	w.debounce[path] = timer
}

// skipReason explains why a spreadsheet-looking file is ignored, or
// returns "".
func (w *Watcher) skipReason(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~"):
		return "office lock file"
	case strings.HasPrefix(base, "smart_") || w.isOutput(path):
		return "generated output"
	}
	if w.Config.Pattern != "" {
		if ok, _ := filepath.Match(w.Config.Pattern, base); !ok {
			return "does not match " + w.Config.Pattern
		}
	}
	return ""
}

func (w *Watcher) processFile(ctx context.Context, path, operation string) {
	if ctx.Err() != nil {
		return
	}
	if w.isOutput(path) {
		return
	}
	// A file that changes while its handler runs is picked up by the next event.
	w.mu.Lock()
	if w.busy[path] {
		w.mu.Unlock()
		return
	}
	w.busy[path] = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.busy, path)
		w.mu.Unlock()
	}()

	evt := Event{Time: time.Now(), Path: path, Operation: operation}
	if _, err := os.Stat(path); err != nil {
		evt.Status = "skipped"
		evt.Reason = "file removed before processing"
		w.record(evt)
		return
	}

	start := time.Now()
	var err error
	if w.Handler != nil {
		err = w.Handler(ctx, path)
	}
	evt.Duration = time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		evt.Status = "error"
		evt.Error = err.Error()
		w.Logger.Printf("Error processing %s: %v", filepath.Base(path), err)
	} else {
		evt.Status = "processed"
		w.Logger.Printf("Processed %s in %s", filepath.Base(path), evt.Duration)
	}
	w.record(evt)
}

func (w *Watcher) record(evt Event) {
	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

// Status returns a snapshot of the watcher.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Status{Running: w.running, Directories: w.Config.Directories, StartedAt: w.started}
	for _, e := range w.events {
		switch e.Status {
		case "processed":
			s.Processed++
		case "error":
			s.Errors++
		case "skipped":
			s.Skipped++
		}
	}
	return s
}

// Events returns all recorded events.
func (w *Watcher) Events() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}

func isSpreadsheetExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls", ".csv":
		return true
	}
	return false
}
