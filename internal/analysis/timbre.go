package analysis

import (
	"math"
	"sort"
)

const (
	nMels = 26
	nMFCC = 13
)

var contrastEdges = [7]float64{200, 400, 800, 1600, 3200, 6400, 0}

// melFilterbank builds nMels triangular filters spanning 0..Nyquist on
// the mel scale, each row indexed by FFT bin.
func melFilterbank(nMels, fftSize, sampleRate int) [][]float64 {
	bins := fftSize/2 + 1
	nyquist := float64(sampleRate) / 2

	points := make([]float64, nMels+2)
	loMel, hiMel := hzToMel(0), hzToMel(nyquist)
	for i := range points {
		mel := loMel + (hiMel-loMel)*float64(i)/float64(nMels+1)
		points[i] = melToHz(mel) * float64(fftSize) / float64(sampleRate)
	}

	bank := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		row := make([]float64, bins)
		left, center, right := points[m], points[m+1], points[m+2]
		for k := 0; k < bins; k++ {
			f := float64(k)
			switch {
			case f > left && f <= center && center > left:
				row[k] = (f - left) / (center - left)
			case f > center && f < right && right > center:
				row[k] = (right - f) / (right - center)
			}
		}
		bank[m] = row
	}
	return bank
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// extractTimbre computes MFCCs, spectral centroid, and six-band spectral
// contrast from the averaged magnitude spectrum.
func (a *Analyzer) extractTimbre(avg []float64) Timbre {
	var t Timbre

	power := make([]float64, len(avg))
	for i, v := range avg {
		power[i] = v * v
	}

	logMel := make([]float64, nMels)
	for m, row := range a.mel {
		var e float64
		for k, w := range row {
			if w > 0 {
				e += w * power[k]
			}
		}
		logMel[m] = math.Log(e + 1e-10)
	}
	for n := 0; n < nMFCC; n++ {
		var c float64
		for m := 0; m < nMels; m++ {
			c += logMel[m] * math.Cos(math.Pi*float64(n)*(float64(m)+0.5)/float64(nMels))
		}
		t.MFCC[n] = c
	}

	var num, den float64
	for k := 1; k < len(avg); k++ {
		num += a.binHz(k) * avg[k]
		den += avg[k]
	}
	if den > 0 {
		t.Centroid = num / den
	}

	for b := 0; b < 6; b++ {
		lo := contrastEdges[b]
		hi := contrastEdges[b+1]
		if hi == 0 {
			hi = float64(a.sampleRate) / 2
		}
		t.Contrast[b] = a.bandContrast(avg, lo, hi)
	}
	return t
}

// bandContrast is the log ratio between the top and bottom fifth of the
// band's magnitudes.
func (a *Analyzer) bandContrast(avg []float64, loHz, hiHz float64) float64 {
	lo, hi := a.hzBin(loHz), a.hzBin(hiHz)
	if hi >= len(avg) {
		hi = len(avg) - 1
	}
	if hi <= lo {
		return 0
	}
	band := append([]float64(nil), avg[lo:hi+1]...)
	sort.Float64s(band)

	n := len(band) / 5
	if n < 1 {
		n = 1
	}
	var top, bot float64
	for i := 0; i < n; i++ {
		bot += band[i]
		top += band[len(band)-1-i]
	}
	top /= float64(n)
	bot /= float64(n)
	return math.Log((top + 1e-10) / (bot + 1e-10))
}
