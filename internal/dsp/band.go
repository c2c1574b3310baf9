// internal/dsp/band.go
package dsp

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidFrequencyRange indicates the band violates 1 <= lower <= upper <= Nyquist
	ErrInvalidFrequencyRange = errors.New("invalid frequency range")
	// ErrInsufficientDataLength indicates too few samples to resolve the lower band edge
	ErrInsufficientDataLength = errors.New("signal data length is insufficient to resolve the target frequency band")
	// ErrTransformerRequired indicates the analyzer was built without a transform
	ErrTransformerRequired = errors.New("transformer is required")
)

// Band describes the frequency range being measured.
type Band struct {
	// Lower is the lower band edge in Hz (from config: lower_frequency)
	Lower float64
	// Upper is the upper band edge in Hz (from config: upper_frequency)
	Upper float64
	// SampleRate is the signal sample rate in Hz (from config: sample_rate)
	SampleRate float64
}

// Nyquist returns half the sample rate, the highest resolvable frequency.
func (b Band) Nyquist() float64 {
	return b.SampleRate / 2
}

// Validate checks 1 <= Lower <= Upper <= SampleRate/2.
func (b Band) Validate() error {
	if b.Lower < 1 || b.Upper > b.Nyquist() || b.Lower > b.Upper {
		return fmt.Errorf("%w: [%v, %v] Hz at %v Hz sample rate", ErrInvalidFrequencyRange, b.Lower, b.Upper, b.SampleRate)
	}
	return nil
}

// MinReadSize is the number of samples needed to hold one full cycle of the
// lower band edge.
func (b Band) MinReadSize() int {
	return int(math.Ceil(b.SampleRate / b.Lower))
}

// Analyzer measures the magnitude of one frequency band in a block of samples.
// It holds no per-call state; concurrent calls are safe as long as the
// Transformer is.
type Analyzer struct {
	transform Transformer
}

// NewAnalyzer creates an analyzer backed by the given transform.
func NewAnalyzer(t Transformer) (*Analyzer, error) {
	if t == nil {
		return nil, ErrTransformerRequired
	}
	return &Analyzer{transform: t}, nil
}

// BandMagnitude returns the sum of spectral magnitudes between lower and upper
// (inclusive, both mapped to the nearest bin). When useWindowing is set a
// Hamming window is applied before the transform.
func (a *Analyzer) BandMagnitude(samples []float64, sampleRate, lower, upper float64, useWindowing bool) (float64, error) {
	band := Band{Lower: lower, Upper: upper, SampleRate: sampleRate}
	if err := band.Validate(); err != nil {
		return 0, err
	}
	if minLen := band.MinReadSize(); len(samples) < minLen {
		return 0, fmt.Errorf("%w: have %d samples, need %d", ErrInsufficientDataLength, len(samples), minLen)
	}

	data := samples
	if useWindowing {
		coeffs, err := Hamming(len(samples))
		if err != nil {
			return 0, err
		}
		if data, err = ApplyWindow(samples, coeffs); err != nil {
			return 0, err
		}
	}

	lo, hi := BinRange(band, len(data))

	if bm, ok := a.transform.(BinRangeMagnituder); ok {
		mags, err := bm.BinMagnitudes(data, lo, hi)
		if err != nil {
			return 0, err
		}
		return sum(mags), nil
	}

	spectrum, err := a.transform.Transform(data)
	if err != nil {
		return 0, err
	}
	return sum(Magnitude(spectrum)[lo : hi+1]), nil
}

// Calibrate returns the theoretical maximum band magnitude: the band magnitude
// of a full-scale sine at the band's lower edge over sampleSize samples.
func (a *Analyzer) Calibrate(band Band, sampleSize int, maxAmplitude float64, useWindowing bool) (float64, error) {
	signal := SineWave(maxAmplitude, sampleSize, band.SampleRate, band.Lower)
	return a.BandMagnitude(signal, band.SampleRate, band.Lower, band.Upper, useWindowing)
}

// BinRange maps the band edges to bin indices for an n-point spectrum.
// Rounding is half away from zero; the upper bin is clamped to n-1.
func BinRange(band Band, n int) (lo, hi int) {
	resolution := band.SampleRate / float64(n)
	lo = int(math.Round(band.Lower / resolution))
	hi = int(math.Round(band.Upper / resolution))
	if hi > n-1 {
		hi = n - 1
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Normalize scales bandMagnitude against maxBandMagnitude into [0, 1].
// Values above the maximum are clamped to 1 and negative input to 0;
// a zero maximum yields 0.
func Normalize(bandMagnitude, maxBandMagnitude float64) float64 {
	if maxBandMagnitude == 0 {
		return 0
	}
	ratio := math.Min(bandMagnitude, maxBandMagnitude) / maxBandMagnitude
	return math.Max(ratio, 0)
}

// SineWave generates length samples of maxAmplitude*sin(2π·frequency·t)
// with t = n/sampleRate.
func SineWave(maxAmplitude float64, length int, sampleRate, frequency float64) []float64 {
	if length <= 0 {
		return nil
	}
	signal := make([]float64, length)
	for n := range signal {
		t := float64(n) / sampleRate
		signal[n] = math.Sin(2*math.Pi*frequency*t) * maxAmplitude
	}
	return signal
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
