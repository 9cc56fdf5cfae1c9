package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Peak is one bin of an amplitude spectrum.
type Peak struct {
	Frequency float64
	Amplitude float64
}

// Spectrum returns the one-sided amplitude spectrum of data sampled at
// sampleRate. The mean is removed and a Hann window applied first; bin 0 is
// omitted.
func Spectrum(data []float64, sampleRate float64) []Peak {
	n := len(data)
	if n < 4 || !(sampleRate > 0) {
		return nil
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)

	buf := make([]complex128, n)
	wsum := 0.0
	for i, v := range data {
		window := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		wsum += window
		buf[i] = complex((v-mean)*window, 0)
	}
	spectrum := fft.FFT(buf)

	peaks := make([]Peak, 0, n/2)
	for k := 1; k <= n/2; k++ {
		peaks = append(peaks, Peak{
			Frequency: float64(k) * sampleRate / float64(n),
			Amplitude: 2 * cmplx.Abs(spectrum[k]) / wsum,
		})
	}
	return peaks
}

// DominantFrequency returns the strongest non-zero frequency. ok is false
// when the series is too short or flat.
func DominantFrequency(data []float64, sampleRate float64) (Peak, bool) {
	var best Peak
	for _, p := range Spectrum(data, sampleRate) {
		if p.Amplitude > best.Amplitude {
			best = p
		}
	}
	return best, best.Amplitude > 1e-12
}
