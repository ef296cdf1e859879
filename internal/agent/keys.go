package agent

import (
	"math/rand"
	"time"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/analysis"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/session"
)

const (
	keysChannel = 1
	keysHold    = 800 * time.Millisecond
)

// NewKeys builds the keys agent: triad comping on the current chord.
func NewKeys(responsiveness float64, rng *rand.Rand) *Generator {
	return newGenerator("keys", responsiveness, keysPatterns(rng, responsiveness), resolveKeys)
}

// resolveKeys voices the current chord as a triad around middle C. When
// no chord is known it falls back to the key's major triad.
func resolveKeys(ev Event, ctx session.Context) []Note {
	root, minor, ok := analysis.ParseChord(ctx.Chord)
	if !ok {
		root, ok = analysis.PitchClass(ctx.Key)
		if !ok {
			root = 0
		}
		minor = false
	}

	base := uint8(60 + root)
	third := base + 4
	if minor {
		third = base + 3
	}
	fifth := base + 7

	v := vel(ev.Velocity)
	return []Note{
		{Pitch: base, Velocity: v, Channel: keysChannel, Duration: ev.Duration},
		{Pitch: third, Velocity: v, Channel: keysChannel, Duration: ev.Duration},
		{Pitch: fifth, Velocity: v, Channel: keysChannel, Duration: ev.Duration},
	}
}

func comp(beat, velocity float64) Event {
	return Event{Beat: beat, Velocity: velocity, Duration: keysHold}
}

func keysPatterns(rng *rand.Rand, responsiveness float64) map[Key][]Event {
	verse := []Event{
		comp(0, 0.6),
		comp(2, 0.55),
	}
	if rng.Float64() < 0.4*responsiveness {
		verse = append(verse, comp(3.5, 0.5))
	}

	chorus := []Event{
		comp(0, 0.7),
		comp(1, 0.6),
		comp(2, 0.65),
		comp(3, 0.6),
	}

	bridge := []Event{
		comp(0, 0.55),
		comp(1.5, 0.5),
	}

	sparse := []Event{comp(0, 0.5)}

	waltz := []Event{
		comp(0, 0.6),
		comp(1, 0.5),
	}

	return map[Key][]Event{
		{TimeSig: "4/4", Section: session.SectionVerse}:  verse,
		{TimeSig: "4/4", Section: session.SectionChorus}: chorus,
		{TimeSig: "4/4", Section: session.SectionBridge}: bridge,
		{TimeSig: "4/4", Section: session.SectionIntro}:  sparse,
		{TimeSig: "4/4", Section: session.SectionOutro}:  sparse,
		{TimeSig: "3/4", Section: session.SectionVerse}:  waltz,
		{TimeSig: "3/4", Section: session.SectionChorus}: waltz,
	}
}
