package agent

import (
	"math/rand"
	"time"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/analysis"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/session"
)

const (
	bassChannel = 0
	bassHold    = 900 * time.Millisecond

	bassLow  = 24 // C1
	bassHigh = 60 // C4
)

// majorIntervals spell one octave of the major scale plus the octave.
var majorIntervals = [8]int{0, 2, 4, 5, 7, 9, 11, 12}

// bassScale roots the major scale at octave 2 for the given key.
func bassScale(keyPC int) [8]int {
	var s [8]int
	for i, iv := range majorIntervals {
		s[i] = 36 + keyPC + iv
	}
	return s
}

// NewBass builds the bass agent: roots and fifths following the chord.
func NewBass(responsiveness float64, rng *rand.Rand) *Generator {
	return newGenerator("bass", responsiveness, bassPatterns(rng, responsiveness), resolveBass)
}

// resolveBass picks the scale tone and shifts it by the chord root's
// distance from the key, wrapped to the nearest direction so the line
// stays in register.
func resolveBass(ev Event, ctx session.Context) []Note {
	keyPC, ok := analysis.PitchClass(ctx.Key)
	if !ok {
		keyPC = 0
	}
	scale := bassScale(keyPC)
	deg := ev.Degree
	if deg < 0 || deg >= len(scale) {
		deg = 0
	}
	pitch := scale[deg]

	if root, _, ok := analysis.ParseChord(ctx.Chord); ok {
		offset := root - keyPC
		if offset > 6 {
			offset -= 12
		} else if offset < -6 {
			offset += 12
		}
		pitch += offset
	}
	if pitch < bassLow {
		pitch = bassLow
	} else if pitch > bassHigh {
		pitch = bassHigh
	}

	return []Note{{
		Pitch:    uint8(pitch),
		Velocity: vel(ev.Velocity),
		Channel:  bassChannel,
		Duration: ev.Duration,
	}}
}

func pluck(beat, velocity float64, degree int) Event {
	return Event{Beat: beat, Velocity: velocity, Duration: bassHold, Degree: degree}
}

func bassPatterns(rng *rand.Rand, responsiveness float64) map[Key][]Event {
	verse := []Event{
		pluck(0, 0.8, 0),
		pluck(2, 0.7, 4),
	}
	if rng.Float64() < 0.5*responsiveness {
		verse = append(verse, pluck(3.5, 0.6, 7))
	}

	chorus := []Event{
		pluck(0, 0.85, 0),
		pluck(1, 0.75, 4),
		pluck(2, 0.8, 5),
		pluck(3, 0.75, 4),
	}

	bridge := []Event{
		pluck(0, 0.7, 0),
		pluck(1.5, 0.65, 2),
		pluck(3, 0.7, 4),
	}

	whole := []Event{pluck(0, 0.6, 0)}

	waltz := []Event{
		pluck(0, 0.8, 0),
		pluck(2, 0.65, 4),
	}

	return map[Key][]Event{
		{TimeSig: "4/4", Section: session.SectionVerse}:  verse,
		{TimeSig: "4/4", Section: session.SectionChorus}: chorus,
		{TimeSig: "4/4", Section: session.SectionBridge}: bridge,
		{TimeSig: "4/4", Section: session.SectionIntro}:  whole,
		{TimeSig: "4/4", Section: session.SectionOutro}:  whole,
		{TimeSig: "3/4", Section: session.SectionVerse}:  waltz,
		{TimeSig: "3/4", Section: session.SectionChorus}: waltz,
	}
}
