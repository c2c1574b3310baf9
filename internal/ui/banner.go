package ui

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/ColonelBlimp/bandmeter/internal/stream"
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorLow)

// BannerInfo is the configuration shown at startup
type BannerInfo struct {
	Source           string
	SampleRate       float64
	LowerFrequency   float64
	UpperFrequency   float64
	MaxAmplitude     float64
	PreferSampleSize int
	FPS              int
	Backend          string
	UseWindowing     bool
	Sizing           stream.Sizing
	TheoreticalMax   float64
}

// PrintBanner writes the configured and derived settings
func PrintBanner(w io.Writer, info BannerInfo) error {
	if _, err := fmt.Fprintln(w, titleStyle.Render("Band Meter")); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		key   string
		value any
	}{
		{"source", info.Source},
		{"sampleRate", info.SampleRate},
		{"frequency", fmt.Sprintf("%v - %v Hz", info.LowerFrequency, info.UpperFrequency)},
		{"maxAmplitude", info.MaxAmplitude},
		{"preferSampleSize", info.PreferSampleSize},
		{"fps", info.FPS},
		{"backend", info.Backend},
		{"windowing", info.UseWindowing},
		{"bufferFlushSize", info.Sizing.FlushSize},
		{"minBufferReadSize", info.Sizing.MinReadSize},
		{"sampleSize", info.Sizing.SampleSize},
		{"bufferSize", info.Sizing.BufferSize},
		{"theoreticalMax", formatNumber(info.TheoreticalMax)},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "  %s\t%v\n", row.key, row.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}
