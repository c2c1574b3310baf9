package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ColonelBlimp/bandmeter/internal/config"
	"github.com/ColonelBlimp/bandmeter/internal/dsp"
	"github.com/ColonelBlimp/bandmeter/internal/meter"
	"github.com/ColonelBlimp/bandmeter/internal/ui"
)

// newLogger returns a text logger on w, at debug level when debug is set
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func meterConfig(s *config.Settings) meter.Config {
	return meter.Config{
		Band: dsp.Band{
			Lower:      s.LowerFrequency,
			Upper:      s.UpperFrequency,
			SampleRate: s.SampleRate,
		},
		MaxAmplitude:     s.MaxAmplitude,
		PreferSampleSize: s.PreferSampleSize,
		FPS:              s.FPS,
		UseWindowing:     s.UseWindowing,
	}
}

func newAnalyzer(backend string) (*dsp.Analyzer, error) {
	transformer, err := dsp.NewTransformer(dsp.Backend(backend))
	if err != nil {
		return nil, fmt.Errorf("fft backend: %w", err)
	}
	return dsp.NewAnalyzer(transformer)
}

// newMeter builds a calibrated meter from settings
func newMeter(s *config.Settings, logger *slog.Logger) (*meter.Meter, error) {
	analyzer, err := newAnalyzer(s.FFTBackend)
	if err != nil {
		return nil, err
	}
	m, err := meter.New(meterConfig(s), analyzer, logger)
	if err != nil {
		return nil, fmt.Errorf("meter: %w", err)
	}
	return m, nil
}

func newReporter(out io.Writer, s *config.Settings) *ui.Reporter {
	var level *ui.LevelMeter
	if s.Meter {
		level = ui.NewLevelMeter(s.MeterWidth)
	}
	return ui.NewReporter(out, level)
}

// bannerInfo describes the meter as built, so the banner shows what runs
func bannerInfo(s *config.Settings, sourceName string, m *meter.Meter) ui.BannerInfo {
	cfg := m.Config()
	return ui.BannerInfo{
		Source:           sourceName,
		SampleRate:       cfg.Band.SampleRate,
		LowerFrequency:   cfg.Band.Lower,
		UpperFrequency:   cfg.Band.Upper,
		MaxAmplitude:     cfg.MaxAmplitude,
		PreferSampleSize: cfg.PreferSampleSize,
		FPS:              cfg.FPS,
		Backend:          s.FFTBackend,
		UseWindowing:     cfg.UseWindowing,
		Sizing:           m.Sizing(),
		TheoreticalMax:   m.TheoreticalMax(),
	}
}
