package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("device capture not initialized")
	ErrAlreadyRunning = errors.New("device capture already running")
	ErrNotRunning     = errors.New("device capture not running")
	ErrInvalidChannel = errors.New("capture channel out of range")
)

// CaptureConfig holds sound-device capture configuration
type CaptureConfig struct {
	DeviceIndex int     // -1 for default device
	SampleRate  uint32  // must match the analysis sample rate
	Channels    uint32  // interleaved channels opened on the device
	Channel     int     // zero-based channel delivered as samples
	BufferSize  uint32  // frames per callback
	Gain        float64 // scale applied to the normalized device samples
	QueueSize   int     // blocks buffered between device and consumer
}

// DefaultCaptureConfig returns the defaults for a single-channel amplifier
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DeviceIndex: -1,
		SampleRate:  250,
		Channels:    1,
		Channel:     0,
		BufferSize:  32,
		Gain:        1,
		QueueSize:   64,
	}
}

// Capture reads one channel of a sound device. Biosignal amplifiers that
// enumerate as audio inputs deliver their samples through it.
type Capture struct {
	config CaptureConfig
	logger *slog.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64

	blocks chan []float64
}

// NewCapture creates a capture instance
func NewCapture(cfg CaptureConfig, logger *slog.Logger) (*Capture, error) {
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.Channel < 0 || cfg.Channel >= int(cfg.Channels) {
		return nil, fmt.Errorf("%w: channel %d of %d", ErrInvalidChannel, cfg.Channel, cfg.Channels)
	}
	if cfg.Gain == 0 {
		cfg.Gain = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		config: cfg,
		logger: logger,
		blocks: make(chan []float64, cfg.QueueSize),
	}, nil
}

// Blocks returns the sample block channel. It is closed by Close.
func (c *Capture) Blocks() <-chan []float64 {
	return c.blocks
}

// Dropped returns the number of blocks discarded because the queue was full
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx
	return nil
}

// ListDevices returns available capture devices
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins capture. The device stops when ctx is done.
func (c *Capture) Start(ctx context.Context) error {
	if c.running.Load() {
		return ErrAlreadyRunning
	}

	c.mu.Lock()
	initialized := c.ctx != nil
	c.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Capture,
		SampleRate:         c.config.SampleRate,
		PeriodSizeInFrames: c.config.BufferSize,
		Capture: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: c.config.Channels,
		},
	}

	if c.config.DeviceIndex >= 0 {
		devices, err := c.ListDevices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}

	onRecvFrames := func(_, inputSamples []byte, _ uint32) {
		if len(inputSamples) == 0 {
			return
		}

		block := extractChannel(bytesToFloat32(inputSamples), int(c.config.Channels), c.config.Channel, c.config.Gain)
		if !c.closed.Load() {
			c.safeSend(block)
		}
	}

	c.mu.Lock()
	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.mu.Unlock()
	c.running.Store(true)

	c.logger.Info("device capture started",
		"device_index", c.config.DeviceIndex,
		"sample_rate", c.config.SampleRate,
		"channel", c.config.Channel)

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

// safeSend queues a block without blocking, dropping it when the queue is
// full. A send racing Close is recovered.
func (c *Capture) safeSend(block []float64) {
	defer func() {
		_ = recover()
	}()

	select {
	case c.blocks <- block:
	default:
		c.dropped.Add(1)
	}
}

// Stop stops capture
func (c *Capture) Stop() error {
	if !c.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	return nil
}

// Close releases all device resources and closes the block channel
func (c *Capture) Close() error {
	c.closed.Store(true)
	_ = c.Stop()

	c.mu.Lock()
	var err error
	if c.ctx != nil {
		if uerr := c.ctx.Uninit(); uerr != nil {
			err = fmt.Errorf("uninit context: %w", uerr)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.blocks)
	})
	return err
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	return c.running.Load()
}

// bytesToFloat32 converts little-endian float32 frames
func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	samples := make([]float32, numSamples)

	for i := range numSamples {
		offset := i * 4
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// extractChannel takes one channel out of interleaved frames and scales it
func extractChannel(interleaved []float32, channels, channel int, gain float64) []float64 {
	if channels < 1 || channel < 0 || channel >= channels {
		return nil
	}
	frames := len(interleaved) / channels
	block := make([]float64, frames)
	for i := range frames {
		block[i] = float64(interleaved[i*channels+channel]) * gain
	}
	return block
}
