package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/bandmeter/internal/config"
	"github.com/ColonelBlimp/bandmeter/internal/dsp"
)

func resetViperForTest() {
	viper.Reset()
}

// executeRoot runs rootCmd with args. Cobra keeps parsed flag values on the
// shared command, so --help is cleared afterwards.
func executeRoot(t *testing.T, out io.Writer, args ...string) error {
	t.Helper()
	t.Cleanup(func() { _ = rootCmd.Flags().Set("help", "false") })
	if args == nil {
		args = []string{}
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// setupConfig isolates HOME and writes content as the user config
func setupConfig(t *testing.T, content string) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	configDir := filepath.Join(tmpDir, ".config", config.AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func testSettings() *config.Settings {
	return &config.Settings{
		Input:            "websocket",
		StartEvent:       "simulation:start",
		Channel:          "c1",
		ReconnectDelay:   50 * time.Millisecond,
		QueueSize:        1024,
		DeviceIndex:      -1,
		DeviceChannels:   1,
		DeviceGain:       1,
		SampleRate:       250,
		MaxAmplitude:     40,
		LowerFrequency:   4,
		UpperFrequency:   8,
		PreferSampleSize: 256,
		FPS:              30,
		UseWindowing:     true,
		FFTBackend:       "radix2",
		MeterWidth:       40,
	}
}

func TestRootCmd_HasExpectedFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"input", "i", "websocket"},
		{"url", "u", config.DefaultSourceURL},
		{"channel", "c", "c1"},
		{"device", "d", "-1"},
		{"backend", "b", "radix2"},
		{"fps", "f", "30"},
		{"meter", "m", "false"},
		{"debug", "D", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.def {
				t.Errorf("flag %q default = %q, want %q", tt.name, flag.DefValue, tt.def)
			}
			if flag.Usage == "" {
				t.Errorf("flag %q has no description", tt.name)
			}
		})
	}
}

func TestRootCmd_Properties(t *testing.T) {
	if rootCmd.Use != "bandmeter" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "bandmeter")
	}
	if rootCmd.Short == "" || rootCmd.Long == "" {
		t.Error("rootCmd descriptions are empty")
	}

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"replay", "calibrate"} {
		if !names[want] {
			t.Errorf("subcommand %q not registered", want)
		}
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	resetViperForTest()

	var buf bytes.Buffer
	if err := executeRoot(t, &buf, "--help"); err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{"bandmeter", "--backend", "--input", "replay", "calibrate"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestInitConfig(t *testing.T) {
	resetViperForTest()
	setupConfig(t, "fps: 20")

	initConfig()

	if viper.GetInt("fps") != 20 {
		t.Errorf("viper.GetInt(fps) = %d, want 20", viper.GetInt("fps"))
	}
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	resetViperForTest()
	setupConfig(t, "lower_frequency: 10\nupper_frequency: 5\n")

	err := executeRoot(t, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Errorf("expected config error, got: %v", err)
	}
}

func TestRootCmd_InvalidConfigAfterHelp(t *testing.T) {
	resetViperForTest()
	t.Run("help", func(t *testing.T) {
		if err := executeRoot(t, &bytes.Buffer{}, "--help"); err != nil {
			t.Fatalf("Execute() with --help error = %v", err)
		}
	})

	setupConfig(t, "lower_frequency: 10\nupper_frequency: 5\n")
	err := executeRoot(t, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "config") {
		t.Errorf("Execute() after --help error = %v, want config error", err)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record written at info level: %q", buf.String())
	}

	newLogger(&buf, true).Debug("shown", "key", 1)
	if !strings.Contains(buf.String(), "msg=shown") || !strings.Contains(buf.String(), "key=1") {
		t.Errorf("debug record = %q", buf.String())
	}
}

func TestNewMeter_UnknownBackend(t *testing.T) {
	s := testSettings()
	s.FFTBackend = "fftw"

	_, err := newMeter(s, nil)
	if !errors.Is(err, dsp.ErrUnknownBackend) {
		t.Errorf("newMeter() error = %v, want ErrUnknownBackend", err)
	}
}

func TestBannerInfo_DescribesMeter(t *testing.T) {
	s := testSettings()
	m, err := newMeter(s, nil)
	if err != nil {
		t.Fatalf("newMeter() error = %v", err)
	}

	info := bannerInfo(s, "websocket", m)
	if info.SampleRate != 250 || info.LowerFrequency != 4 || info.UpperFrequency != 8 {
		t.Errorf("band = %v Hz [%v, %v], want 250 Hz [4, 8]", info.SampleRate, info.LowerFrequency, info.UpperFrequency)
	}
	if info.FPS != 30 || info.MaxAmplitude != 40 || !info.UseWindowing {
		t.Errorf("analysis = %+v", info)
	}
	if info.Sizing != m.Sizing() || info.TheoreticalMax != m.TheoreticalMax() {
		t.Errorf("sizing = %+v max = %v, want %+v %v", info.Sizing, info.TheoreticalMax, m.Sizing(), m.TheoreticalMax())
	}
}

func TestRunStream_WebSocket(t *testing.T) {
	signal := dsp.SineWave(40, 400, 250, 4)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, v := range signal {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"c1": %v}`, v))); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	s := testSettings()
	s.SourceURL = "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out bytes.Buffer
	err := runStream(ctx, s, &out, io.Discard)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("runStream() error = %v, want deadline exceeded", err)
	}

	output := out.String()
	if !strings.Contains(output, "sampleSize") {
		t.Errorf("banner missing from output:\n%s", output)
	}

	// 400 samples: first batch at 256, then one every 8 samples
	lines := strings.Count(output, "ratio: ")
	if lines != 19 {
		t.Errorf("result lines = %d, want 19", lines)
	}
	if !strings.Contains(output, "ratio: 1\t") {
		t.Errorf("first batch of the calibration sine should give ratio 1:\n%s", output)
	}
}

func TestRunStream_InvalidSource(t *testing.T) {
	s := testSettings()
	s.SourceURL = ""

	err := runStream(context.Background(), s, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "websocket") {
		t.Errorf("runStream() error = %v, want websocket error", err)
	}
}
