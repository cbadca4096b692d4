package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultLabelWidth = 28
	DefaultFilledChar = "█"
	DefaultEmptyChar  = "▱"
	MinBarWidth       = 1
)

// BarData is one row of a horizontal bar chart.
type BarData struct {
	Label  string
	Value  float64
	Style  lipgloss.Style
	Suffix string // e.g. "(cap 64)"
}

type BarConfig struct {
	BarAreaWidth int
	LabelWidth   int
	ValueFormat  string
}

func DefaultBarConfig(barAreaWidth int) BarConfig {
	return BarConfig{
		BarAreaWidth: barAreaWidth,
		LabelWidth:   DefaultLabelWidth,
		ValueFormat:  "%.0f",
	}
}

// CreateBar renders "Label │████▱▱▱│ Value Suffix". Bars are scaled to scale,
// the largest value in the chart.
func CreateBar(data BarData, scale float64, config BarConfig) string {
	filled := MinBarWidth
	if scale > 0 {
		filled = max(MinBarWidth, int(data.Value/scale*float64(config.BarAreaWidth)))
	}
	filled = min(filled, config.BarAreaWidth)
	bar := strings.Repeat(DefaultFilledChar, filled) +
		strings.Repeat(DefaultEmptyChar, config.BarAreaWidth-filled)

	value := fmt.Sprintf(config.ValueFormat, data.Value)
	if data.Suffix != "" {
		value += " " + data.Suffix
	}
	return fmt.Sprintf("%-*s │%s│ %s",
		config.LabelWidth, TruncateString(data.Label, config.LabelWidth), data.Style.Render(bar), value)
}

// CreateBarChart renders bars under an optional title.
func CreateBarChart(title string, bars []BarData, config BarConfig) string {
	var lines []string
	if title != "" {
		lines = append(lines, TitleStyle.Render(title), "")
	}

	scale := 0.0
	for _, b := range bars {
		scale = max(scale, b.Value)
	}
	for _, b := range bars {
		lines = append(lines, CreateBar(b, scale, config))
	}
	return strings.Join(lines, "\n")
}
