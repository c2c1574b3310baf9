// internal/dsp/transform_test.go
package dsp

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

// generateNoise creates deterministic pseudo-random samples
func generateNoise(numSamples int, amplitude float64) []float64 {
	samples := make([]float64, numSamples)
	for i := range samples {
		samples[i] = math.Sin(float64(i*7919)) * amplitude
	}
	return samples
}

// naiveDFT is the O(N²) reference transform
func naiveDFT(samples []float64) []complex128 {
	n := len(samples)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var acc complex128
		for j, x := range samples {
			angle := -2 * math.Pi * float64(j*k) / float64(n)
			acc += complex(x, 0) * cmplx.Exp(complex(0, angle))
		}
		out[k] = acc
	}
	return out
}

func TestNewTransformer(t *testing.T) {
	for _, b := range Backends() {
		t.Run(string(b), func(t *testing.T) {
			tr, err := NewTransformer(b)
			if err != nil {
				t.Fatalf("NewTransformer(%q) error = %v", b, err)
			}
			if tr == nil {
				t.Fatalf("NewTransformer(%q) returned nil", b)
			}
		})
	}

	if _, err := NewTransformer(""); err != nil {
		t.Errorf("NewTransformer(\"\") error = %v, want radix2 default", err)
	}
}

func TestNewTransformer_Unknown(t *testing.T) {
	_, err := NewTransformer("fftw")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got: %v", err)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	testCases := []struct {
		n    int
		want bool
	}{
		{-2, false},
		{0, false},
		{1, true},
		{2, true},
		{3, false},
		{64, true},
		{63, false},
		{4096, true},
	}

	for _, tc := range testCases {
		if got := IsPowerOfTwo(tc.n); got != tc.want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestTransform_InvalidLength(t *testing.T) {
	for _, b := range Backends() {
		tr, _ := NewTransformer(b)
		for _, n := range []int{0, 3, 63, 100} {
			_, err := tr.Transform(make([]float64, n))
			if !errors.Is(err, ErrInvalidLength) {
				t.Errorf("%s: Transform(len %d) error = %v, want ErrInvalidLength", b, n, err)
			}
		}
	}
}

func TestRadix2_MatchesNaiveDFT(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 64} {
		samples := generateNoise(n, 3.0)
		want := naiveDFT(samples)

		got, err := Radix2{}.Transform(samples)
		if err != nil {
			t.Fatalf("Transform(len %d) failed: %v", n, err)
		}
		for k := range want {
			if cmplx.Abs(got[k]-want[k]) > 1e-9 {
				t.Errorf("n=%d bin %d = %v, want %v", n, k, got[k], want[k])
			}
		}
	}
}

func TestGoertzel_TransformMatchesNaiveDFT(t *testing.T) {
	samples := generateNoise(32, 2.0)
	want := naiveDFT(samples)

	got, err := Goertzel{}.Transform(samples)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	for k := range want {
		if cmplx.Abs(got[k]-want[k]) > 1e-9 {
			t.Errorf("bin %d = %v, want %v", k, got[k], want[k])
		}
	}
}

func TestBackends_AgreeOnMagnitude(t *testing.T) {
	samples := generateNoise(256, 10.0)
	reference := Magnitude(naiveDFT(samples))

	for _, b := range Backends() {
		t.Run(string(b), func(t *testing.T) {
			tr, err := NewTransformer(b)
			if err != nil {
				t.Fatalf("NewTransformer failed: %v", err)
			}
			spectrum, err := tr.Transform(samples)
			if err != nil {
				t.Fatalf("Transform failed: %v", err)
			}
			if len(spectrum) != len(samples) {
				t.Fatalf("spectrum length = %d, want %d", len(spectrum), len(samples))
			}
			mags := Magnitude(spectrum)
			for k := range reference {
				if math.Abs(mags[k]-reference[k]) > 1e-6 {
					t.Errorf("bin %d magnitude = %v, want %v", k, mags[k], reference[k])
				}
			}
		})
	}
}

func TestTransform_SineBin(t *testing.T) {
	// 8 cycles over 64 samples lands exactly on bin 8
	n := 64
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 8 * float64(i) / float64(n))
	}

	spectrum, err := Radix2{}.Transform(samples)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	mags := Magnitude(spectrum)

	if math.Abs(mags[8]-float64(n)/2) > 1e-9 {
		t.Errorf("bin 8 magnitude = %v, want %v", mags[8], float64(n)/2)
	}
	if math.Abs(mags[n-8]-float64(n)/2) > 1e-9 {
		t.Errorf("mirror bin magnitude = %v, want %v", mags[n-8], float64(n)/2)
	}
	for k, m := range mags {
		if k == 8 || k == n-8 {
			continue
		}
		if m > 1e-9 {
			t.Errorf("bin %d magnitude = %v, want ~0", k, m)
		}
	}
}

func TestMagnitude(t *testing.T) {
	got := Magnitude([]complex128{complex(3, 4), complex(0, -2), 0})
	want := []float64{5, 2, 0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Magnitude[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if Magnitude(nil) != nil {
		t.Error("Magnitude(nil) should be nil")
	}
}
