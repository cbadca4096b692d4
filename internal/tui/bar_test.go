package tui

import (
	"strings"
	"testing"
)

func TestCreateBarScalesToLargest(t *testing.T) {
	config := DefaultBarConfig(10)
	tests := []struct {
		name   string
		value  float64
		scale  float64
		filled int
	}{
		{"full", 8, 8, 10},
		{"half", 4, 8, 5},
		{"tiny value keeps one cell", 0.01, 8, 1},
		{"zero scale", 0, 0, 1},
		{"over scale is capped", 20, 8, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := CreateBar(BarData{Label: "x", Value: tt.value}, tt.scale, config)
			if got := strings.Count(bar, DefaultFilledChar); got != tt.filled {
				t.Errorf("filled cells: got %d, want %d in %q", got, tt.filled, bar)
			}
			if got := strings.Count(bar, DefaultEmptyChar); got != 10-tt.filled {
				t.Errorf("empty cells: got %d in %q", got, bar)
			}
		})
	}
}

func TestCreateBarChart(t *testing.T) {
	chart := CreateBarChart("Registry", []BarData{
		{Label: "Classes", Value: 2},
		{Label: "Objects", Value: 4, Suffix: "(cap 64)"},
	}, DefaultBarConfig(8))

	lines := strings.Split(chart, "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), chart)
	}
	if !strings.Contains(lines[0], "Registry") {
		t.Errorf("title line: %q", lines[0])
	}
	if !strings.HasSuffix(lines[3], "4 (cap 64)") {
		t.Errorf("suffix: %q", lines[3])
	}
	if strings.Count(lines[2], DefaultFilledChar) != 4 {
		t.Errorf("half-scale bar: %q", lines[2])
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("com.acme.shop.Cart", 10); got != "com.acm..." {
		t.Errorf("got %q", got)
	}
	if got := TruncateString("Cart", 10); got != "Cart" {
		t.Errorf("got %q", got)
	}
	if got := TruncateString("Cart", 2); got != ".." {
		t.Errorf("got %q", got)
	}
}
