package ui

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/ColonelBlimp/bandmeter/internal/meter"
)

// Reporter writes one line per result. Without a level meter the line is
// "ratio: R\tmag: M \ttmag: T"; with one, the bar precedes the numbers.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	level *LevelMeter
	err   error
}

// NewReporter creates a reporter. A nil level meter selects plain lines.
func NewReporter(out io.Writer, level *LevelMeter) *Reporter {
	return &Reporter{out: out, level: level}
}

// Report writes one result. It has the meter.ResultCallback signature.
func (r *Reporter) Report(result meter.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	_, r.err = io.WriteString(r.out, r.Format(result)+"\n")
}

// Format renders one result without the trailing newline
func (r *Reporter) Format(result meter.Result) string {
	if r.level == nil {
		return fmt.Sprintf("ratio: %s\tmag: %s \ttmag: %s",
			formatNumber(result.MagnitudeRatio),
			formatNumber(result.BandMagnitude),
			formatNumber(result.TheoreticalMax))
	}
	return fmt.Sprintf("%s %5.1f%%  mag: %.3f  tmag: %.3f",
		r.level.Render(result.MagnitudeRatio),
		result.MagnitudeRatio*100,
		result.BandMagnitude,
		result.TheoreticalMax)
}

// Err returns the first write error, after which reporting stops
func (r *Reporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// formatNumber prints the shortest decimal that round-trips
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
