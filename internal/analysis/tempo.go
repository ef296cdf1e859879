package analysis

import "math"

// extractTempo appends this block's spectral flux to the rolling onset
// envelope and autocorrelates it over the 40-240 BPM lag range. The
// envelope spans several seconds of frames so slow tempi still fit.
func (a *Analyzer) extractTempo(mags [][]float64) Tempo {
	for _, m := range mags {
		if a.prevMag != nil {
			flux := 0.0
			n := len(m)
			if len(a.prevMag) < n {
				n = len(a.prevMag)
			}
			for k := 0; k < n; k++ {
				if d := m[k] - a.prevMag[k]; d > 0 {
					flux += d
				}
			}
			a.onsetEnv = append(a.onsetEnv, flux)
		}
		a.prevMag = m
	}
	if over := len(a.onsetEnv) - onsetEnvMax; over > 0 {
		a.onsetEnv = append(a.onsetEnv[:0:0], a.onsetEnv[over:]...)
	}

	bpm, conf := a.tempoFromEnvelope()
	if bpm > 0 {
		a.tempoHist = append(a.tempoHist, bpm)
		if len(a.tempoHist) > tempoHistoryLen {
			a.tempoHist = a.tempoHist[len(a.tempoHist)-tempoHistoryLen:]
		}
	}
	if len(a.tempoHist) == 0 {
		return Tempo{BPM: defaultBPM, Confidence: 0}
	}
	return Tempo{BPM: weightedTempo(a.tempoHist), Confidence: conf}
}

// tempoFromEnvelope picks the lag with the strongest autocorrelation,
// biased toward moderate tempi so subharmonics do not win ties.
func (a *Analyzer) tempoFromEnvelope() (float64, float64) {
	env := a.onsetEnv
	fps := float64(a.sampleRate) / float64(a.hop)
	minLag := int(fps * 60 / maxBPM)
	maxLag := int(fps * 60 / minBPM)
	if minLag < 1 {
		minLag = 1
	}
	if len(env) < maxLag+minLag {
		return 0, 0
	}

	mean := 0.0
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))

	e := make([]float64, len(env))
	var zero float64
	for i, v := range env {
		e[i] = v - mean
		zero += e[i] * e[i]
	}
	zero /= float64(len(e))
	if zero <= 0 {
		return 0, 0
	}

	bestLag, bestScore, bestRaw := 0, 0.0, 0.0
	for lag := minLag; lag <= maxLag && lag < len(e); lag++ {
		var s float64
		for i := 0; i+lag < len(e); i++ {
			s += e[i] * e[i+lag]
		}
		raw := s / float64(len(e)-lag)
		score := raw * tempoPrior(60*fps/float64(lag))
		if score > bestScore {
			bestScore, bestRaw, bestLag = score, raw, lag
		}
	}
	if bestLag == 0 || bestRaw <= 0 {
		return 0, 0
	}
	conf := bestRaw / zero
	if conf > 1 {
		conf = 1
	}
	return 60 * fps / float64(bestLag), conf
}

// tempoPrior is a log-normal bump centered on 120 BPM, one octave wide.
func tempoPrior(bpm float64) float64 {
	d := math.Log2(bpm / defaultBPM)
	return math.Exp(-0.5 * d * d)
}

// weightedTempo averages the history with weights ramping from 0.5 on
// the oldest entry to 1.0 on the newest.
func weightedTempo(hist []float64) float64 {
	n := len(hist)
	if n == 1 {
		return hist[0]
	}
	var num, den float64
	for i, t := range hist {
		w := 0.5 + 0.5*float64(i)/float64(n-1)
		num += w * t
		den += w
	}
	return num / den
}
