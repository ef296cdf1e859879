// Package analysis extracts musical features from raw audio: pitch,
// chords, tempo, dynamics, and timbre, each with its own confidence.
// Extraction never fails; short or silent input yields a neutral
// snapshot so the pipeline keeps ticking.
package analysis

import "math"

// Mode trades latency against spectral resolution.
type Mode string

const (
	ModeLowLatency   Mode = "low_latency"
	ModeBalanced     Mode = "balanced"
	ModeHighAccuracy Mode = "high_accuracy"
)

func (m Mode) fftSize() int {
	switch m {
	case ModeLowLatency:
		return 1024
	case ModeHighAccuracy:
		return 4096
	default:
		return 2048
	}
}

const (
	preEmphasis = 0.97

	minPitchHz = 50.0
	maxPitchHz = 2000.0

	minBPM     = 40.0
	maxBPM     = 240.0
	defaultBPM = 120.0

	pitchHistoryLen  = 5
	chromaHistoryLen = 3
	tempoHistoryLen  = 10
	onsetEnvMax      = 512

	chordThreshold = 0.5
	maxChordLabels = 3
)

type Tempo struct {
	BPM        float64
	Confidence float64
}

type Pitch struct {
	Hz         float64
	Confidence float64
	Note       string
}

type Chords struct {
	Labels     []string
	Confidence float64
}

type Dynamics struct {
	Value float64
	Peak  float64
	RMS   float64
}

type Timbre struct {
	MFCC     [13]float64
	Centroid float64
	Contrast [6]float64
}

// Snapshot is one extraction result. Zero confidences mark features the
// extractor could not establish from the given frame.
type Snapshot struct {
	Tempo    Tempo
	Pitch    Pitch
	Chords   Chords
	Dynamics Dynamics
	Timbre   Timbre
}

// Neutral is the snapshot for input too short or too quiet to analyze.
func Neutral() Snapshot {
	return Snapshot{Tempo: Tempo{BPM: defaultBPM}}
}

// Analyzer holds the window, filterbanks, and smoothing histories. Not
// safe for concurrent use; the analysis loop is its single caller.
type Analyzer struct {
	sampleRate int
	fftSize    int
	hop        int

	window    []float64
	mel       [][]float64
	templates []chordTemplate

	pitchHist  []pitchObs
	chromaHist [][12]float64
	tempoHist  []float64
	onsetEnv   []float64
	prevMag    []float64
}

type pitchObs struct {
	hz   float64
	conf float64
}

// New builds an analyzer for the given stream geometry. The hop is half
// the capture buffer; the FFT size follows the mode.
func New(sampleRate, bufferSize int, mode Mode) *Analyzer {
	hop := bufferSize / 2
	if hop < 1 {
		hop = 1
	}
	size := mode.fftSize()
	return &Analyzer{
		sampleRate: sampleRate,
		fftSize:    size,
		hop:        hop,
		window:     hannWindow(size),
		mel:        melFilterbank(nMels, size, sampleRate),
		templates:  chordTemplates(),
	}
}

// Analyze extracts every feature from one block of mono samples.
func (a *Analyzer) Analyze(samples []float32) Snapshot {
	if len(samples) < a.hop {
		return Neutral()
	}

	dyn := extractDynamics(samples)
	y := preprocess(samples)
	mags := a.spectralFrames(y)
	if len(mags) == 0 {
		s := Neutral()
		s.Dynamics = dyn
		return s
	}
	avg := averageSpectra(mags)

	return Snapshot{
		Tempo:    a.extractTempo(mags),
		Pitch:    a.extractPitch(avg),
		Chords:   a.extractChords(avg),
		Dynamics: dyn,
		Timbre:   a.extractTimbre(avg),
	}
}

func extractDynamics(samples []float32) Dynamics {
	var peak, sumsq float64
	for _, s := range samples {
		v := float64(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
		sumsq += float64(s) * float64(s)
	}
	rms := 0.0
	if len(samples) > 0 {
		rms = math.Sqrt(sumsq / float64(len(samples)))
	}
	value := rms * 10
	if value > 1 {
		value = 1
	}
	return Dynamics{Value: value, Peak: peak, RMS: rms}
}
