// internal/dsp/goertzel.go
package dsp

import (
	"errors"
	"math"
)

// ErrInvalidBinRange indicates a bin range outside the spectrum
var ErrInvalidBinRange = errors.New("bin range must satisfy 0 <= lo <= hi < block size")

// BinRangeMagnituder is implemented by transforms that can produce |X[k]| for a
// contiguous range of bins without computing the full spectrum.
// The analyzer prefers it over Transform when available.
type BinRangeMagnituder interface {
	BinMagnitudes(samples []float64, lo, hi int) ([]float64, error)
}

// Goertzel evaluates individual DFT bins with the Goertzel recurrence.
// It is more efficient than an FFT when only a handful of bins are needed,
// which is the case for a narrow band over a long block.
type Goertzel struct{}

// BinMagnitudes returns |X[k]| for k in [lo, hi] inclusive.
func (Goertzel) BinMagnitudes(samples []float64, lo, hi int) ([]float64, error) {
	n := len(samples)
	if err := checkLength(n); err != nil {
		return nil, err
	}
	if lo < 0 || hi < lo || hi >= n {
		return nil, ErrInvalidBinRange
	}

	out := make([]float64, hi-lo+1)
	for k := lo; k <= hi; k++ {
		s1, s2, coeff := goertzelState(samples, k)

		// |X[k]|² = s1² + s2² - coefficient * s1 * s2
		power := s1*s1 + s2*s2 - coeff*s1*s2

		// Guard against floating point errors causing negative values
		if power < 0 {
			power = 0
		}
		out[k-lo] = math.Sqrt(power)
	}
	return out, nil
}

// Transform implements Transformer by evaluating every bin. This is O(N²) and
// exists so the Goertzel backend can stand in anywhere a full spectrum is needed.
func (Goertzel) Transform(samples []float64) ([]complex128, error) {
	n := len(samples)
	if err := checkLength(n); err != nil {
		return nil, err
	}

	out := make([]complex128, n)
	for k := range out {
		s1, s2, _ := goertzelState(samples, k)
		sin, cos := math.Sincos(2 * math.Pi * float64(k) / float64(n))
		// X[k] = e^(jω)·s1 - s2
		out[k] = complex(cos*s1-s2, sin*s1)
	}
	return out, nil
}

// goertzelState runs the recurrence for bin k and returns the last two states
// together with the coefficient 2cos(2πk/N).
func goertzelState(samples []float64, k int) (s1, s2, coeff float64) {
	omega := 2 * math.Pi * float64(k) / float64(len(samples))
	coeff = 2 * math.Cos(omega)

	var s0 float64
	for _, x := range samples {
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1, s2, coeff
}
