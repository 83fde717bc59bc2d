// Package progress draws per-row progress for long model runs.
// Output goes to stderr so stdout stays clean for --json and pipes.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Bar is a row counter with an ETA. Failed rows are counted separately so
// the summary line can report them.
type Bar struct {
	Total   int
	Current int
	Failed  int
	Label   string
	Width   int
	Enabled bool
	Out     io.Writer

	mu      sync.Mutex
	started time.Time
	now     func() time.Time
}

// New creates a progress bar on stderr. It is disabled when stderr is not a
// terminal, when SMARTSHEET_JSON=true, or when SMARTSHEET_NO_PROGRESS=1.
func New(label string, total int) *Bar {
	return &Bar{
		Total:   total,
		Label:   label,
		Width:   30,
		Enabled: shouldEnable(),
		Out:     os.Stderr,
		started: time.Now(),
		now:     time.Now,
	}
}

// Increment records one finished row. A status ending in "failed" counts
// as a failure.
func (b *Bar) Increment(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Current < b.Total {
		b.Current++
	}
	if strings.HasSuffix(status, "failed") {
		b.Failed++
	}
	b.render(status)
}

// Finish prints the summary line.
func (b *Bar) Finish(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.Enabled {
		return
	}
	mark := "✓"
	if b.Failed > 0 {
		mark = "!"
		summary = fmt.Sprintf("%s (%d failed)", summary, b.Failed)
	}
	fmt.Fprintf(b.out(), "\r\033[K%s %s in %s\n", mark, summary, b.elapsed().Round(100*time.Millisecond))
}

// Pct returns the completed share, 0 to 100.
func (b *Bar) Pct() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Total == 0 {
		return 0
	}
	return float64(b.Current) / float64(b.Total) * 100
}

// ETA estimates the remaining time from the average row duration so far.
func (b *Bar) ETA() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eta()
}

func (b *Bar) eta() time.Duration {
	if b.Current == 0 || b.Current >= b.Total {
		return 0
	}
	per := b.elapsed() / time.Duration(b.Current)
	return per * time.Duration(b.Total-b.Current)
}

func (b *Bar) elapsed() time.Duration {
	if b.started.IsZero() {
		return 0
	}
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	return now().Sub(b.started)
}

func (b *Bar) out() io.Writer {
	if b.Out == nil {
		return os.Stderr
	}
	return b.Out
}

func (b *Bar) render(status string) {
	if !b.Enabled {
		return
	}

	filled := 0
	if b.Total > 0 {
		filled = b.Current * b.Width / b.Total
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", b.Width-filled)
	line := fmt.Sprintf("\r\033[K%s [%s] %d/%d", b.Label, bar, b.Current, b.Total)
	if eta := b.eta(); eta > 0 {
		line += fmt.Sprintf(" eta %s", eta.Round(time.Second))
	}
	fmt.Fprintf(b.out(), "%s  %s", line, status)
}

// Spinner marks a single long call, such as a chart or transform request.
type Spinner struct {
	Label   string
	Enabled bool
	Out     io.Writer

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner on stderr.
func NewSpinner(label string) *Spinner {
	return &Spinner{Label: label, Enabled: shouldEnable(), Out: os.Stderr}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if !s.Enabled {
		return
	}
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		frames := `|/-\`
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.out(), "\r\033[K%c %s", frames[i%len(frames)], s.Label)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop ends the animation and prints result. Safe to call more than once.
func (s *Spinner) Stop(result string) {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()

	if done != nil {
		close(done)
		s.wg.Wait()
	}
	if s.Enabled && result != "" {
		fmt.Fprintf(s.out(), "\r\033[K✓ %s\n", result)
	}
}

// Update changes the label while running.
func (s *Spinner) Update(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Label = label
}

func (s *Spinner) out() io.Writer {
	if s.Out == nil {
		return os.Stderr
	}
	return s.Out
}

func shouldEnable() bool {
	if os.Getenv("SMARTSHEET_NO_PROGRESS") == "1" {
		return false
	}
	if os.Getenv("SMARTSHEET_JSON") == "true" {
		return false
	}
	stat, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
