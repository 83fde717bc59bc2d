package progress

import (
	"strings"
	"testing"
	"time"
)

func TestNewWithEnvDisable(t *testing.T) {
	t.Setenv("SMARTSHEET_NO_PROGRESS", "1")
	if New("test", 10).Enabled {
		t.Error("expected bar to be disabled with SMARTSHEET_NO_PROGRESS=1")
	}
	if NewSpinner("test").Enabled {
		t.Error("expected spinner to be disabled")
	}
}

func TestNewWithJSONDisable(t *testing.T) {
	t.Setenv("SMARTSHEET_JSON", "true")
	if New("test", 10).Enabled {
		t.Error("expected bar to be disabled with SMARTSHEET_JSON=true")
	}
}

func TestBarIncrementCapsAndCountsFailures(t *testing.T) {
	bar := &Bar{Total: 3, Width: 10}
	bar.Increment("row 2")
	bar.Increment("row 3 failed")
	bar.Increment("row 4")
	bar.Increment("row 5")
	if bar.Current != 3 {
		t.Errorf("Current = %d, want capped at 3", bar.Current)
	}
	if bar.Failed != 1 {
		t.Errorf("Failed = %d, want 1", bar.Failed)
	}
}

func TestBarPct(t *testing.T) {
	tests := []struct {
		current, total int
		want           float64
	}{
		{0, 10, 0},
		{5, 10, 50},
		{10, 10, 100},
		{0, 0, 0},
	}
	for _, tt := range tests {
		bar := &Bar{Total: tt.total, Current: tt.current}
		if got := bar.Pct(); got != tt.want {
			t.Errorf("Pct(%d/%d) = %.1f, want %.1f", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestBarETA(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(10 * time.Second)
	bar := &Bar{Total: 4, Current: 2, started: start, now: func() time.Time { return now }}
	if got := bar.ETA(); got != 10*time.Second {
		t.Errorf("ETA = %s, want 10s", got)
	}
	bar.Current = 4
	if got := bar.ETA(); got != 0 {
		t.Errorf("ETA when done = %s, want 0", got)
	}
}

func TestBarRendersToOut(t *testing.T) {
	var out strings.Builder
	bar := &Bar{Total: 2, Width: 4, Enabled: true, Out: &out, Label: "text"}
	bar.Increment("row 2")
	bar.Increment("row 3 failed")
	bar.Finish("text: 2 rows")

	got := out.String()
	if !strings.Contains(got, "text [##..] 1/2") {
		t.Errorf("missing half bar in %q", got)
	}
	if !strings.Contains(got, "text: 2 rows (1 failed)") {
		t.Errorf("missing summary in %q", got)
	}
}

func TestDisabledBarDoesNotWrite(t *testing.T) {
	var out strings.Builder
	bar := &Bar{Total: 10, Width: 40, Out: &out}
	bar.Increment("test")
	bar.Finish("done")
	if out.Len() > 0 {
		t.Errorf("disabled bar wrote %q", out.String())
	}
}

func TestSpinnerStartStop(t *testing.T) {
	var out safeBuilder
	s := &Spinner{Label: "chart", Enabled: true, Out: &out}
	s.Start()
	s.Start()
	time.Sleep(250 * time.Millisecond)
	s.Stop("done")
	s.Stop("")
	if !strings.Contains(out.String(), "chart") {
		t.Errorf("spinner frames missing: %q", out.String())
	}
	if !strings.HasSuffix(out.String(), "✓ done\n") {
		t.Errorf("missing result line: %q", out.String())
	}
}

func TestSpinnerDisabled(t *testing.T) {
	var out strings.Builder
	s := &Spinner{Label: "test", Out: &out}
	s.Start()
	s.Update("updated")
	s.Stop("done")
	if s.Label != "updated" {
		t.Errorf("Label = %q", s.Label)
	}
	if out.Len() > 0 {
		t.Errorf("disabled spinner wrote %q", out.String())
	}
}
