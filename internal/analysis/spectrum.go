package analysis

import (
	"math"
	"math/cmplx"

	"github.com/maddyblue/go-dsp/fft"
)

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// preprocess converts to float64 and applies pre-emphasis.
func preprocess(samples []float32) []float64 {
	y := make([]float64, len(samples))
	prev := 0.0
	for i, s := range samples {
		v := float64(s)
		y[i] = v - preEmphasis*prev
		prev = v
	}
	return y
}

// spectralFrames windows the signal at hop intervals and returns the
// magnitude spectrum of each frame. Short tails are zero padded.
func (a *Analyzer) spectralFrames(y []float64) [][]float64 {
	var frames [][]float64
	buf := make([]float64, a.fftSize)
	for start := 0; start < len(y); start += a.hop {
		end := start + a.fftSize
		if end > len(y) {
			end = len(y)
		}
		n := copy(buf, y[start:end])
		for i := n; i < a.fftSize; i++ {
			buf[i] = 0
		}
		for i := range buf {
			buf[i] *= a.window[i]
		}
		spec := fft.FFTReal(buf)
		mag := make([]float64, a.fftSize/2+1)
		for i := range mag {
			mag[i] = cmplx.Abs(spec[i])
		}
		frames = append(frames, mag)
	}
	return frames
}

func averageSpectra(frames [][]float64) []float64 {
	avg := make([]float64, len(frames[0]))
	for _, f := range frames {
		for i, v := range f {
			avg[i] += v
		}
	}
	inv := 1 / float64(len(frames))
	for i := range avg {
		avg[i] *= inv
	}
	return avg
}

// binHz is the center frequency of an FFT bin.
func (a *Analyzer) binHz(bin int) float64 {
	return float64(bin) * float64(a.sampleRate) / float64(a.fftSize)
}

// hzBin is the nearest FFT bin for a frequency.
func (a *Analyzer) hzBin(hz float64) int {
	return int(math.Round(hz * float64(a.fftSize) / float64(a.sampleRate)))
}
