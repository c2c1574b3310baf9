package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/ColonelBlimp/bandmeter/internal/config"
	"github.com/ColonelBlimp/bandmeter/internal/meter"
	"github.com/ColonelBlimp/bandmeter/internal/source"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Measure a recorded CSV session",
	Long: `Replays a recorded session through the meter, sample by sample, and prints
one result per batch. The file needs a header row; the column named by --channel is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Get()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		progress, _ := cmd.Flags().GetBool("progress")

		var bar io.Writer
		if progress {
			bar = cmd.ErrOrStderr()
		}
		_, err = replay(args[0], settings, cmd.OutOrStdout(), bar)
		return err
	},
}

func init() {
	replayCmd.Flags().BoolP("progress", "p", true, "show a progress bar on stderr")
	rootCmd.AddCommand(replayCmd)
}

// ReplaySummary aggregates a replayed session
type ReplaySummary struct {
	Samples   int
	Results   int
	Overflow  uint64
	PeakRatio float64
	MeanRatio float64
}

// replay runs every sample of path through a meter. Results are printed after
// the run so they do not interleave with the progress bar, which is drawn on
// progressOut when it is non-nil.
func replay(path string, settings *config.Settings, out, progressOut io.Writer) (ReplaySummary, error) {
	samples, err := source.ReadCSVFile(path, settings.Channel)
	if err != nil {
		return ReplaySummary{}, err
	}

	logger := newLogger(io.Discard, false)
	if progressOut != nil {
		logger = newLogger(progressOut, settings.Debug)
	}
	m, err := newMeter(settings, logger)
	if err != nil {
		return ReplaySummary{}, err
	}

	var p *mpb.Progress
	var bar *mpb.Bar
	if progressOut != nil {
		p = mpb.New(mpb.WithOutput(progressOut), mpb.WithWidth(64))
		bar = p.AddBar(int64(len(samples)),
			mpb.PrependDecorators(
				decor.Name("Replaying: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
			),
		)
	}

	var results []meter.Result
	for _, s := range samples {
		result, ok, err := m.Push(s)
		if err != nil {
			if bar != nil {
				bar.Abort(false)
				p.Wait()
			}
			return ReplaySummary{}, err
		}
		if ok {
			results = append(results, result)
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if p != nil {
		p.Wait()
	}

	if err := printReplay(out, settings, m, results); err != nil {
		return ReplaySummary{}, err
	}

	summary := summarize(len(samples), m.Dropped(), results)
	if summary.Results > 0 {
		_, err = fmt.Fprintf(out, "samples: %d\tresults: %d\toverflow: %d\tpeak: %.4f\tmean: %.4f\n",
			summary.Samples, summary.Results, summary.Overflow, summary.PeakRatio, summary.MeanRatio)
	}
	return summary, err
}

func printReplay(out io.Writer, settings *config.Settings, m *meter.Meter, results []meter.Result) error {
	reporter := newReporter(out, settings)
	for _, r := range results {
		reporter.Report(r)
	}
	if err := reporter.Err(); err != nil {
		return err
	}

	if len(results) == 0 {
		_, err := fmt.Fprintf(out, "no results: recording is shorter than one batch (%d samples)\n", m.Sizing().SampleSize)
		return err
	}
	return nil
}

func summarize(samples int, overflow uint64, results []meter.Result) ReplaySummary {
	summary := ReplaySummary{Samples: samples, Results: len(results), Overflow: overflow}
	var total float64
	for _, r := range results {
		summary.PeakRatio = max(summary.PeakRatio, r.MagnitudeRatio)
		total += r.MagnitudeRatio
	}
	if len(results) > 0 {
		summary.MeanRatio = total / float64(len(results))
	}
	return summary
}
