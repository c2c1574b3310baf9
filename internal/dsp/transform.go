// internal/dsp/transform.go
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	godspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

var (
	// ErrInvalidLength indicates the transform input length is not a power of two
	ErrInvalidLength = errors.New("transform length must be a power of two")
	// ErrUnknownBackend indicates an unsupported transform backend name
	ErrUnknownBackend = errors.New("unknown transform backend")
)

// Backend names a transform implementation (from config: fft_backend)
type Backend string

const (
	BackendRadix2   Backend = "radix2"
	BackendGonum    Backend = "gonum"
	BackendGoDSP    Backend = "godsp"
	BackendAlgoFFT  Backend = "algofft"
	BackendGoertzel Backend = "goertzel"
)

// Backends lists every supported backend in display order.
func Backends() []Backend {
	return []Backend{BackendRadix2, BackendGonum, BackendGoDSP, BackendAlgoFFT, BackendGoertzel}
}

// Transformer computes the discrete Fourier transform of real samples.
// The returned spectrum has the same length as the input; bin k corresponds
// to k*sampleRate/len(samples) Hz.
type Transformer interface {
	Transform(samples []float64) ([]complex128, error)
}

// NewTransformer returns the Transformer for the named backend.
// An empty name selects the radix-2 backend.
func NewTransformer(b Backend) (Transformer, error) {
	switch b {
	case BackendRadix2, "":
		return Radix2{}, nil
	case BackendGonum:
		return Gonum{}, nil
	case BackendGoDSP:
		return GoDSP{}, nil
	case BackendAlgoFFT:
		return AlgoFFT{}, nil
	case BackendGoertzel:
		return Goertzel{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, b)
	}
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func checkLength(n int) error {
	if !IsPowerOfTwo(n) {
		return fmt.Errorf("%w: got %d", ErrInvalidLength, n)
	}
	return nil
}

// Magnitude returns |X[k]| for every bin of spectrum.
func Magnitude(spectrum []complex128) []float64 {
	if len(spectrum) == 0 {
		return nil
	}

	re := make([]float64, len(spectrum))
	im := make([]float64, len(spectrum))
	for i, c := range spectrum {
		re[i] = real(c)
		im[i] = imag(c)
	}

	out := make([]float64, len(spectrum))
	vecmath.Magnitude(out, re, im)
	return out
}

// Radix2 is an iterative in-place Cooley-Tukey transform.
type Radix2 struct{}

// Transform implements Transformer.
func (Radix2) Transform(samples []float64) ([]complex128, error) {
	n := len(samples)
	if err := checkLength(n); err != nil {
		return nil, err
	}

	out := make([]complex128, n)
	if n == 1 {
		out[0] = complex(samples[0], 0)
		return out, nil
	}

	// Bit-reversed load
	shift := uint(bits.UintSize - bits.TrailingZeros(uint(n)))
	for i, v := range samples {
		out[bits.Reverse(uint(i))>>shift] = complex(v, 0)
	}

	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		step := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				sin, cos := math.Sincos(step * float64(k))
				twiddle := complex(cos, sin)
				even := out[start+k]
				odd := twiddle * out[start+k+half]
				out[start+k] = even + odd
				out[start+k+half] = even - odd
			}
		}
	}
	return out, nil
}

// Gonum delegates to gonum's complex FFT.
type Gonum struct{}

// Transform implements Transformer.
func (Gonum) Transform(samples []float64) ([]complex128, error) {
	n := len(samples)
	if err := checkLength(n); err != nil {
		return nil, err
	}

	seq := make([]complex128, n)
	for i, v := range samples {
		seq[i] = complex(v, 0)
	}
	return fourier.NewCmplxFFT(n).Coefficients(nil, seq), nil
}

// GoDSP delegates to go-dsp's real FFT.
type GoDSP struct{}

// Transform implements Transformer.
func (GoDSP) Transform(samples []float64) ([]complex128, error) {
	if err := checkLength(len(samples)); err != nil {
		return nil, err
	}
	return godspfft.FFTReal(samples), nil
}

// AlgoFFT delegates to algo-fft planned transforms.
type AlgoFFT struct{}

// Transform implements Transformer.
func (AlgoFFT) Transform(samples []float64) ([]complex128, error) {
	n := len(samples)
	if err := checkLength(n); err != nil {
		return nil, err
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("create fft plan: %w", err)
	}

	in := make([]complex128, n)
	for i, v := range samples {
		in[i] = complex(v, 0)
	}
	out := make([]complex128, n)
	if err := plan.Forward(out, in); err != nil {
		return nil, fmt.Errorf("forward fft: %w", err)
	}
	return out, nil
}
