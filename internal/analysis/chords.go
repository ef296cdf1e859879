package analysis

import (
	"math"
	"sort"
)

type chordTemplate struct {
	label  string
	vector [12]float64
}

// chordTemplates builds the 24 triad profiles: root weighted 1.0, third
// and fifth 0.8.
func chordTemplates() []chordTemplate {
	out := make([]chordTemplate, 0, 24)
	for pc := 0; pc < 12; pc++ {
		var maj [12]float64
		maj[pc] = 1.0
		maj[(pc+4)%12] = 0.8
		maj[(pc+7)%12] = 0.8
		out = append(out, chordTemplate{label: NoteNames[pc], vector: maj})

		var min [12]float64
		min[pc] = 1.0
		min[(pc+3)%12] = 0.8
		min[(pc+7)%12] = 0.8
		out = append(out, chordTemplate{label: NoteNames[pc] + "m", vector: min})
	}
	return out
}

// extractChords folds the spectrum into chroma, smooths it over recent
// frames, and matches triad templates.
func (a *Analyzer) extractChords(avg []float64) Chords {
	chroma := a.foldChroma(avg)
	a.chromaHist = append(a.chromaHist, chroma)
	if len(a.chromaHist) > chromaHistoryLen {
		a.chromaHist = a.chromaHist[len(a.chromaHist)-chromaHistoryLen:]
	}

	var mean [12]float64
	for _, c := range a.chromaHist {
		for i, v := range c {
			mean[i] += v
		}
	}
	peak := 0.0
	for _, v := range mean {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return Chords{}
	}
	for i := range mean {
		mean[i] /= peak
	}

	type candidate struct {
		label string
		score float64
	}
	var cands []candidate
	for _, t := range a.templates {
		if s := cosine(mean, t.vector); s >= chordThreshold {
			cands = append(cands, candidate{label: t.label, score: s})
		}
	}
	if len(cands) == 0 {
		return Chords{}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) > maxChordLabels {
		cands = cands[:maxChordLabels]
	}

	labels := make([]string, len(cands))
	for i, c := range cands {
		labels[i] = c.label
	}
	conf := 1.0
	if len(cands) > 1 && cands[0].score > 0 {
		conf = (cands[0].score - cands[1].score) / cands[0].score
	}
	return Chords{Labels: labels, Confidence: conf}
}

// foldChroma accumulates bin magnitudes into the twelve pitch classes.
func (a *Analyzer) foldChroma(avg []float64) [12]float64 {
	var chroma [12]float64
	for k := 1; k < len(avg); k++ {
		hz := a.binHz(k)
		if hz < minPitchHz || hz > 5000 {
			continue
		}
		midi := 69 + 12*math.Log2(hz/440)
		pc := ((int(math.Round(midi)) % 12) + 12) % 12
		chroma[pc] += avg[k]
	}
	return chroma
}

func cosine(a, b [12]float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}
