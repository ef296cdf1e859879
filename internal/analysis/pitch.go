package analysis

import (
	"fmt"
	"math"
)

// NoteNames are the twelve pitch classes, sharps only, C first.
var NoteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName renders a frequency as a note name with octave, "A4" style.
func NoteName(hz float64) string {
	if hz <= 0 {
		return ""
	}
	midi := int(math.Round(69 + 12*math.Log2(hz/440)))
	if midi < 0 || midi > 127 {
		return ""
	}
	return fmt.Sprintf("%s%d", NoteNames[midi%12], midi/12-1)
}

// PitchClass resolves a note name ("C", "F#") to its pitch class 0..11.
func PitchClass(name string) (int, bool) {
	for i, n := range NoteNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// ParseChord splits a chord label into root pitch class and quality.
// Labels are the ones this package emits: "C" major, "Cm" minor.
func ParseChord(label string) (root int, minor bool, ok bool) {
	if label == "" {
		return 0, false, false
	}
	name := label
	if name[len(name)-1] == 'm' && len(name) > 1 {
		minor = true
		name = name[:len(name)-1]
	}
	root, ok = PitchClass(name)
	return root, minor, ok
}

// extractPitch finds the dominant spectral peak in the vocal/instrument
// range and smooths it against recent confident observations.
func (a *Analyzer) extractPitch(avg []float64) Pitch {
	lo := a.hzBin(minPitchHz)
	hi := a.hzBin(maxPitchHz)
	if lo < 1 {
		lo = 1
	}
	if hi > len(avg)-2 {
		hi = len(avg) - 2
	}
	if hi <= lo {
		return a.smoothedPitch()
	}

	peak, peakMag, total := 0, 0.0, 0.0
	for k := lo; k <= hi; k++ {
		total += avg[k]
		if avg[k] > peakMag {
			peakMag = avg[k]
			peak = k
		}
	}
	if peakMag < 1e-9 || total <= 0 {
		return a.smoothedPitch()
	}

	// Parabolic interpolation around the peak bin.
	delta := 0.0
	den := avg[peak-1] - 2*avg[peak] + avg[peak+1]
	if den != 0 {
		delta = 0.5 * (avg[peak-1] - avg[peak+1]) / den
		if delta > 0.5 {
			delta = 0.5
		} else if delta < -0.5 {
			delta = -0.5
		}
	}
	hz := (float64(peak) + delta) * float64(a.sampleRate) / float64(a.fftSize)
	if hz < minPitchHz {
		hz = minPitchHz
	} else if hz > maxPitchHz {
		hz = maxPitchHz
	}

	conf := peakMag / total
	if conf > 1 {
		conf = 1
	}

	a.pitchHist = append(a.pitchHist, pitchObs{hz: hz, conf: conf})
	if len(a.pitchHist) > pitchHistoryLen {
		a.pitchHist = a.pitchHist[len(a.pitchHist)-pitchHistoryLen:]
	}
	return a.smoothedPitch()
}

// smoothedPitch is the confidence-weighted mean of recent observations.
func (a *Analyzer) smoothedPitch() Pitch {
	var num, den, confSum float64
	for _, o := range a.pitchHist {
		num += o.hz * o.conf
		den += o.conf
		confSum += o.conf
	}
	if den <= 0 {
		return Pitch{}
	}
	hz := num / den
	conf := confSum / float64(len(a.pitchHist))
	return Pitch{Hz: hz, Confidence: conf, Note: NoteName(hz)}
}
