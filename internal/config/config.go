// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"
)

const (
	AppName    = "bandmeter"
	ConfigType = "yaml"

	// DefaultSourceURL is the public simulation feed
	DefaultSourceURL = "wss://data-simulation.kkhomelab.site/socket.io/?EIO=4&transport=websocket"

	DefaultConfig = `# Band Meter Configuration

# Sample source
input: "websocket"                          # websocket or device
source_url: "` + DefaultSourceURL + `"
start_event: "simulation:start"             # event sent after connecting ("" to skip)
channel: "c1"                               # record field carrying the samples
reconnect_delay: 5s                         # wait before reconnecting a dropped source
queue_size: 1024                            # samples buffered between source and analysis
device_index: -1                            # sound device for input=device (-1 for default)
device_channels: 1                          # interleaved channels opened on the device
device_channel: 0                           # zero-based device channel carrying the samples
device_gain: 1                              # scale from normalized device samples to amplitude units

# Signal
sample_rate: 250        # Sample rate in Hz
max_amplitude: 40       # Full-scale amplitude, used to build the calibration reference

# Frequency band (4-8 Hz is the Theta rhythm)
lower_frequency: 4      # Lower band edge in Hz (>= 1)
upper_frequency: 8      # Upper band edge in Hz (<= sample_rate/2)

# Analysis
prefer_sample_size: 256 # Preferred batch length; raised to the minimum that resolves lower_frequency
fps: 30                 # Results per second; sets how far the window slides per batch
use_windowing: true     # Apply a Hamming window before the transform
fft_backend: "radix2"   # radix2, gonum, godsp, algofft or goertzel

# Output
meter: false            # Draw a level bar instead of plain lines
meter_width: 40         # Level bar width in cells
debug: false            # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	// Sample source
	Input          string        `mapstructure:"input"`
	SourceURL      string        `mapstructure:"source_url"`
	StartEvent     string        `mapstructure:"start_event"`
	Channel        string        `mapstructure:"channel"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	QueueSize      int           `mapstructure:"queue_size"`
	DeviceIndex    int           `mapstructure:"device_index"`
	DeviceChannels int           `mapstructure:"device_channels"`
	DeviceChannel  int           `mapstructure:"device_channel"`
	DeviceGain     float64       `mapstructure:"device_gain"`

	// Signal
	SampleRate   float64 `mapstructure:"sample_rate"`
	MaxAmplitude float64 `mapstructure:"max_amplitude"`

	// Frequency band
	LowerFrequency float64 `mapstructure:"lower_frequency"`
	UpperFrequency float64 `mapstructure:"upper_frequency"`

	// Analysis
	PreferSampleSize int    `mapstructure:"prefer_sample_size"`
	FPS              int    `mapstructure:"fps"`
	UseWindowing     bool   `mapstructure:"use_windowing"`
	FFTBackend       string `mapstructure:"fft_backend"`

	// Output
	Meter      bool `mapstructure:"meter"`
	MeterWidth int  `mapstructure:"meter_width"`
	Debug      bool `mapstructure:"debug"`
}

// Inputs lists the supported sample sources.
var Inputs = []string{"websocket", "device"}

// FFTBackends lists the supported transform backends.
var FFTBackends = []string{"radix2", "gonum", "godsp", "algofft", "goertzel"}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("input", "websocket")
	viper.SetDefault("source_url", DefaultSourceURL)
	viper.SetDefault("start_event", "simulation:start")
	viper.SetDefault("channel", "c1")
	viper.SetDefault("reconnect_delay", "5s")
	viper.SetDefault("queue_size", 1024)
	viper.SetDefault("device_index", -1)
	viper.SetDefault("device_channels", 1)
	viper.SetDefault("device_channel", 0)
	viper.SetDefault("device_gain", 1)
	viper.SetDefault("sample_rate", 250)
	viper.SetDefault("max_amplitude", 40)
	viper.SetDefault("lower_frequency", 4)
	viper.SetDefault("upper_frequency", 8)
	viper.SetDefault("prefer_sample_size", 256)
	viper.SetDefault("fps", 30)
	viper.SetDefault("use_windowing", true)
	viper.SetDefault("fft_backend", "radix2")
	viper.SetDefault("meter", false)
	viper.SetDefault("meter_width", 40)
	viper.SetDefault("debug", false)
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/bandmeter/
func Init() error {
	SetDefaults()

	viper.SetConfigType(ConfigType)
	viper.SetEnvPrefix("BANDMETER")
	viper.AutomaticEnv()

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Sample source
	if !slices.Contains(Inputs, s.Input) {
		errs = append(errs, fmt.Errorf("input must be one of %v, got %q", Inputs, s.Input))
	}
	if s.Input == "websocket" && s.SourceURL == "" {
		errs = append(errs, errors.New("source_url is required for websocket input"))
	}
	if s.Channel == "" {
		errs = append(errs, errors.New("channel must not be empty"))
	}
	if s.ReconnectDelay < 0 {
		errs = append(errs, fmt.Errorf("reconnect_delay must not be negative, got %v", s.ReconnectDelay))
	}
	if s.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", s.QueueSize))
	}
	if s.Input == "device" {
		if s.DeviceChannels < 1 {
			errs = append(errs, fmt.Errorf("device_channels must be positive, got %d", s.DeviceChannels))
		}
		if s.DeviceChannel < 0 || s.DeviceChannel >= s.DeviceChannels {
			errs = append(errs, fmt.Errorf("device_channel must be in [0, %d), got %d", s.DeviceChannels, s.DeviceChannel))
		}
		if s.SampleRate != math.Trunc(s.SampleRate) {
			errs = append(errs, fmt.Errorf("sample_rate must be a whole number of Hz for input=device, got %v", s.SampleRate))
		}
		if s.DeviceGain == 0 {
			errs = append(errs, errors.New("device_gain must not be zero"))
		}
	}

	// Signal
	if s.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %v", s.SampleRate))
	}
	if s.MaxAmplitude <= 0 {
		errs = append(errs, fmt.Errorf("max_amplitude must be positive, got %v", s.MaxAmplitude))
	}

	// Frequency band: 1 <= lower <= upper <= Nyquist
	if s.LowerFrequency < 1 {
		errs = append(errs, fmt.Errorf("lower_frequency must be at least 1 Hz, got %v", s.LowerFrequency))
	}
	if s.LowerFrequency > s.UpperFrequency {
		errs = append(errs, fmt.Errorf("lower_frequency (%v Hz) must not exceed upper_frequency (%v Hz)", s.LowerFrequency, s.UpperFrequency))
	}
	if s.SampleRate > 0 && s.UpperFrequency > s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("upper_frequency (%v Hz) must not exceed Nyquist frequency (%v Hz)", s.UpperFrequency, s.SampleRate/2))
	}

	// Analysis
	if s.PreferSampleSize < 1 {
		errs = append(errs, fmt.Errorf("prefer_sample_size must be positive, got %d", s.PreferSampleSize))
	}
	if s.FPS < 1 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", s.FPS))
	}
	// A flush of zero samples would re-emit the same batch
	if s.SampleRate > 0 && float64(s.FPS) > 2*s.SampleRate {
		errs = append(errs, fmt.Errorf("fps (%d) must not exceed twice the sample rate (%v Hz)", s.FPS, s.SampleRate))
	}
	if !slices.Contains(FFTBackends, s.FFTBackend) {
		errs = append(errs, fmt.Errorf("fft_backend must be one of %v, got %q", FFTBackends, s.FFTBackend))
	}

	// Output
	if s.MeterWidth < 10 || s.MeterWidth > 200 {
		errs = append(errs, fmt.Errorf("meter_width must be between 10 and 200, got %d", s.MeterWidth))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
