// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/bandmeter/internal/config"
	"github.com/ColonelBlimp/bandmeter/internal/recovery"
	"github.com/ColonelBlimp/bandmeter/internal/source"
	"github.com/ColonelBlimp/bandmeter/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "bandmeter",
	Short: "Streaming frequency band energy meter",
	Long: `A real-time meter that reports how much of a signal's energy falls inside a
frequency band (4-8 Hz Theta by default), as a ratio against a calibrated full-scale sine.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().StringP("input", "i", "websocket", "sample source: websocket or device")
	rootCmd.PersistentFlags().StringP("url", "u", config.DefaultSourceURL, "websocket source URL")
	rootCmd.PersistentFlags().StringP("channel", "c", "c1", "record channel carrying the samples")
	rootCmd.PersistentFlags().IntP("device", "d", -1, "sound device index (-1 for default)")
	rootCmd.PersistentFlags().StringP("backend", "b", "radix2", "transform backend: radix2, gonum, godsp, algofft or goertzel")
	rootCmd.PersistentFlags().IntP("fps", "f", 30, "results per second")
	rootCmd.PersistentFlags().BoolP("meter", "m", false, "draw a level bar instead of plain lines")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	// Bind flags to viper
	viper.BindPFlag("input", rootCmd.PersistentFlags().Lookup("input"))
	viper.BindPFlag("source_url", rootCmd.PersistentFlags().Lookup("url"))
	viper.BindPFlag("channel", rootCmd.PersistentFlags().Lookup("channel"))
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("fft_backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("fps", rootCmd.PersistentFlags().Lookup("fps"))
	viper.BindPFlag("meter", rootCmd.PersistentFlags().Lookup("meter"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runStream(ctx, settings, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runStream measures the configured live source until ctx is done
func runStream(ctx context.Context, settings *config.Settings, out, errOut io.Writer) error {
	logger := newLogger(errOut, settings.Debug)

	m, err := newMeter(settings, logger)
	if err != nil {
		return err
	}

	if err := ui.PrintBanner(out, bannerInfo(settings, settings.Input, m)); err != nil {
		return err
	}
	reporter := newReporter(out, settings)
	m.SetCallback(reporter.Report)

	switch settings.Input {
	case "device":
		capture, err := source.NewCapture(source.CaptureConfig{
			DeviceIndex: settings.DeviceIndex,
			SampleRate:  uint32(settings.SampleRate),
			Channels:    uint32(settings.DeviceChannels),
			Channel:     settings.DeviceChannel,
			BufferSize:  uint32(m.Sizing().FlushSize),
			Gain:        settings.DeviceGain,
			QueueSize:   settings.QueueSize,
		}, logger)
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		if err := capture.Init(); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		defer capture.Close()
		// The device thread keeps running after a panic here unless released
		defer recovery.HandlePanicFunc(func() { _ = capture.Close() })

		if err := capture.Start(ctx); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		err = m.RunBlocks(ctx, capture.Blocks())
		logger.Info("device capture stopped", "dropped_blocks", capture.Dropped(), "overflow", m.Dropped())
		return err

	default:
		ws, err := source.NewWebSocket(source.WebSocketConfig{
			URL:            settings.SourceURL,
			StartEvent:     settings.StartEvent,
			Channel:        settings.Channel,
			ReconnectDelay: settings.ReconnectDelay,
			QueueSize:      settings.QueueSize,
		}, logger)
		if err != nil {
			return fmt.Errorf("websocket: %w", err)
		}

		wsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		recovery.Go("websocket", func() {
			_ = ws.Run(wsCtx)
		})

		err = m.Run(ctx, ws.Samples())
		logger.Info("websocket source stopped",
			"state", ws.State(),
			"received", ws.Received(),
			"dropped", ws.Dropped(),
			"max_value", ws.MaxValue(),
			"overflow", m.Dropped())
		return err
	}
}
