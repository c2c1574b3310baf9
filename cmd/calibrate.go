package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/bandmeter/internal/config"
	"github.com/ColonelBlimp/bandmeter/internal/dsp"
	"github.com/ColonelBlimp/bandmeter/internal/stream"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Print buffer sizing and the calibration reference of every backend",
	Long: `Derives the buffer geometry from the configuration and computes the theoretical
maximum band magnitude (a full-scale sine at the lower band edge) with each transform backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := config.Get()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return calibrate(cmd.OutOrStdout(), settings)
	},
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}

// calibrate writes sizing plus one row per backend
func calibrate(out io.Writer, settings *config.Settings) error {
	sizing, err := stream.NewSizing(settings.SampleRate, settings.LowerFrequency, settings.FPS, settings.PreferSampleSize)
	if err != nil {
		return fmt.Errorf("buffer sizing: %w", err)
	}
	if _, err := fmt.Fprintln(out, sizing); err != nil {
		return err
	}

	band := meterConfig(settings).Band
	lo, hi := dsp.BinRange(band, sizing.SampleSize)
	if _, err := fmt.Fprintf(out, "band bins: %d..%d (%.4g Hz per bin)\n", lo, hi, band.SampleRate/float64(sizing.SampleSize)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "backend\ttheoretical max\telapsed")
	for _, backend := range dsp.Backends() {
		analyzer, err := newAnalyzer(string(backend))
		if err != nil {
			return err
		}

		start := time.Now()
		reference, err := analyzer.Calibrate(band, sizing.SampleSize, settings.MaxAmplitude, settings.UseWindowing)
		if err != nil {
			return fmt.Errorf("%s: %w", backend, err)
		}
		fmt.Fprintf(tw, "%s\t%.6f\t%v\n", backend, reference, time.Since(start).Round(time.Microsecond))
	}
	return tw.Flush()
}
