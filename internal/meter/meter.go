// internal/meter/meter.go
package meter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/bandmeter/internal/dsp"
	"github.com/ColonelBlimp/bandmeter/internal/stream"
)

var (
	// ErrAnalyzerRequired indicates an analyzer instance is required
	ErrAnalyzerRequired = errors.New("analyzer instance is required")
	// ErrInvalidMaxAmplitude indicates the calibration amplitude must be positive
	ErrInvalidMaxAmplitude = errors.New("max amplitude must be positive")
)

// Config holds configuration for the band meter.
// All values should come from the application config file.
type Config struct {
	// Band is the frequency range to measure (from config: lower_frequency, upper_frequency, sample_rate)
	Band dsp.Band
	// MaxAmplitude is the full-scale amplitude of the calibration sine (from config: max_amplitude)
	MaxAmplitude float64
	// PreferSampleSize is the preferred batch length (from config: prefer_sample_size)
	PreferSampleSize int
	// FPS is the target result cadence (from config: fps)
	FPS int
	// UseWindowing applies a Hamming window before each transform (from config: use_windowing)
	UseWindowing bool
}

// Result is one band measurement.
type Result struct {
	// BandMagnitude is the raw summed magnitude of the band bins
	BandMagnitude float64
	// MagnitudeRatio is BandMagnitude against the theoretical maximum, in [0, 1]
	MagnitudeRatio float64
	// TheoreticalMax is the calibration reference the ratio was computed against
	TheoreticalMax float64
	// Overflow is the number of samples discarded while taking this batch
	Overflow int
	// Timestamp is when the batch was analyzed
	Timestamp time.Time
}

// ResultCallback is called for every result.
// Must be non-blocking and fast - called from the sample processing path.
type ResultCallback func(result Result)

// Meter turns a stream of samples into band measurements. It slides a
// fixed-size window over the stream and analyzes each batch the buffer emits.
//
// Push is not safe for concurrent use. Feed samples from a single goroutine,
// or use Run with a channel.
type Meter struct {
	config         Config
	analyzer       *dsp.Analyzer
	buffer         *stream.Buffer
	theoreticalMax float64
	logger         *slog.Logger

	// Callback for results (atomic for thread safety)
	callbackPtr atomic.Pointer[ResultCallback]
}

// New creates a meter, derives buffer sizing and computes the calibration
// reference. The reference is fixed for the life of the meter.
func New(cfg Config, analyzer *dsp.Analyzer, logger *slog.Logger) (*Meter, error) {
	if analyzer == nil {
		return nil, ErrAnalyzerRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Band.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxAmplitude <= 0 {
		return nil, ErrInvalidMaxAmplitude
	}

	sizing, err := stream.NewSizing(cfg.Band.SampleRate, cfg.Band.Lower, cfg.FPS, cfg.PreferSampleSize)
	if err != nil {
		return nil, fmt.Errorf("buffer sizing: %w", err)
	}

	theoreticalMax, err := analyzer.Calibrate(cfg.Band, sizing.SampleSize, cfg.MaxAmplitude, cfg.UseWindowing)
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}

	logger.Debug("meter calibrated",
		"sample_size", sizing.SampleSize,
		"flush_size", sizing.FlushSize,
		"buffer_size", sizing.BufferSize,
		"theoretical_max", theoreticalMax)

	return &Meter{
		config:         cfg,
		analyzer:       analyzer,
		buffer:         stream.NewBuffer(sizing),
		theoreticalMax: theoreticalMax,
		logger:         logger,
	}, nil
}

// SetCallback sets the callback for results.
// The callback is invoked from the goroutine calling Push - it must be fast and non-blocking.
func (m *Meter) SetCallback(cb ResultCallback) {
	if cb == nil {
		m.callbackPtr.Store(nil)
	} else {
		m.callbackPtr.Store(&cb)
	}
}

// Push adds one sample. When a batch becomes ready it is analyzed and the
// result is both returned and passed to the callback; otherwise ok is false.
// Overflow is logged, not returned as an error. Errors come only from the
// analyzer and indicate a configuration defect.
func (m *Meter) Push(sample float64) (result Result, ok bool, err error) {
	m.buffer.Push(sample)
	return m.next()
}

// PushBlock adds a block of samples and then takes at most one batch. Sources
// that deliver samples in bursts use it; any backlog beyond twice the batch
// size is dropped as overflow.
func (m *Meter) PushBlock(samples []float64) (result Result, ok bool, err error) {
	for _, s := range samples {
		m.buffer.Push(s)
	}
	return m.next()
}

// next analyzes the next batch if one is ready
func (m *Meter) next() (Result, bool, error) {
	batch, ready := m.buffer.Next()
	if !ready {
		return Result{}, false, nil
	}

	if batch.Overflow > 0 {
		m.logger.Warn("sample buffer overflow", "dropped", batch.Overflow, "total_dropped", m.buffer.Dropped())
	}

	result, err := m.analyze(batch)
	if err != nil {
		return Result{}, false, err
	}

	m.emitResult(result)
	return result, true, nil
}

// analyze measures one batch
func (m *Meter) analyze(batch stream.Batch) (Result, error) {
	band := m.config.Band
	magnitude, err := m.analyzer.BandMagnitude(batch.Samples, band.SampleRate, band.Lower, band.Upper, m.config.UseWindowing)
	if err != nil {
		return Result{}, fmt.Errorf("band magnitude: %w", err)
	}

	return Result{
		BandMagnitude:  magnitude,
		MagnitudeRatio: dsp.Normalize(magnitude, m.theoreticalMax),
		TheoreticalMax: m.theoreticalMax,
		Overflow:       batch.Overflow,
		Timestamp:      time.Now(),
	}, nil
}

// emitResult calls the registered callback if set
func (m *Meter) emitResult(result Result) {
	cbPtr := m.callbackPtr.Load()
	if cbPtr != nil {
		(*cbPtr)(result)
	}
}

// Run pushes every sample received on samples until the channel is closed
// or ctx is done. It is the single consumer of the buffer.
func (m *Meter) Run(ctx context.Context, samples <-chan float64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, open := <-samples:
			if !open {
				return nil
			}
			if _, _, err := m.Push(sample); err != nil {
				return err
			}
		}
	}
}

// RunBlocks is Run for sources that deliver blocks of samples.
func (m *Meter) RunBlocks(ctx context.Context, blocks <-chan []float64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, open := <-blocks:
			if !open {
				return nil
			}
			if _, _, err := m.PushBlock(block); err != nil {
				return err
			}
		}
	}
}

// TheoreticalMax returns the calibration reference.
func (m *Meter) TheoreticalMax() float64 {
	return m.theoreticalMax
}

// Sizing returns the buffer geometry.
func (m *Meter) Sizing() stream.Sizing {
	return m.buffer.Sizing()
}

// Dropped returns the total number of samples discarded as overflow.
func (m *Meter) Dropped() uint64 {
	return m.buffer.Dropped()
}

// Reset discards pending samples. The calibration reference is kept.
func (m *Meter) Reset() {
	m.buffer.Reset()
}

// Config returns the current configuration
func (m *Meter) Config() Config {
	return m.config
}
