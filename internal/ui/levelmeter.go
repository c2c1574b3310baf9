// Package ui renders band measurements on the console
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Default meter colors (ANSI 256)
const (
	ColorLow  = lipgloss.Color("46")
	ColorMid  = lipgloss.Color("226")
	ColorHigh = lipgloss.Color("196")
	ColorDim  = lipgloss.Color("240")
)

// LevelMeter renders a magnitude ratio as a horizontal bar
type LevelMeter struct {
	Width      int
	GreenZone  float64 // Fraction where green ends (0.0-1.0)
	YellowZone float64 // Fraction where yellow ends (0.0-1.0)

	low, mid, high, dim lipgloss.Style
}

// NewLevelMeter creates a meter with the default zones and colors
func NewLevelMeter(width int) *LevelMeter {
	return &LevelMeter{
		Width:      width,
		GreenZone:  0.6,
		YellowZone: 0.8,
		low:        lipgloss.NewStyle().Foreground(ColorLow),
		mid:        lipgloss.NewStyle().Foreground(ColorMid),
		high:       lipgloss.NewStyle().Foreground(ColorHigh),
		dim:        lipgloss.NewStyle().Foreground(ColorDim),
	}
}

// Filled returns the number of filled cells for level, clamped to [0, Width]
func (m *LevelMeter) Filled(level float64) int {
	level = min(max(level, 0), 1)
	return min(int(level*float64(m.Width)), m.Width)
}

// Render renders the bar at the specified level (0.0-1.0)
func (m *LevelMeter) Render(level float64) string {
	filled := m.Filled(level)
	greenEnd := int(m.GreenZone * float64(m.Width))
	yellowEnd := int(m.YellowZone * float64(m.Width))

	var sb strings.Builder
	for i := 0; i < m.Width; i++ {
		switch {
		case i >= filled:
			sb.WriteString(m.dim.Render("░"))
		case i < greenEnd:
			sb.WriteString(m.low.Render("█"))
		case i < yellowEnd:
			sb.WriteString(m.mid.Render("█"))
		default:
			sb.WriteString(m.high.Render("█"))
		}
	}
	return sb.String()
}
