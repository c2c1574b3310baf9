// internal/dsp/window.go
package dsp

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

var (
	// ErrWindowTooShort indicates a window needs at least two coefficients
	ErrWindowTooShort = errors.New("window length must be at least 2")
	// ErrLengthMismatch indicates samples and window coefficients differ in length
	ErrLengthMismatch = errors.New("samples and window coefficients must have the same length")
)

// Hamming returns symmetric Hamming window coefficients of the given length.
// Coefficient n is 0.54 - 0.46*cos(2πn/(L-1)), so both ends sit at 0.08
// and the center approaches 1.0.
func Hamming(length int) ([]float64, error) {
	if length < 2 {
		return nil, ErrWindowTooShort
	}

	denominator := float64(length - 1)
	coeffs := make([]float64, length)
	for n := range coeffs {
		coeffs[n] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/denominator)
	}
	return coeffs, nil
}

// ApplyWindow multiplies samples by coeffs and returns the result in a new slice.
// The input is left untouched.
func ApplyWindow(samples, coeffs []float64) ([]float64, error) {
	if len(samples) != len(coeffs) {
		return nil, ErrLengthMismatch
	}

	out := make([]float64, len(samples))
	vecmath.MulBlock(out, samples, coeffs)
	return out, nil
}
