package agent

import (
	"math/rand"
	"time"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/session"
)

// General MIDI percussion map, channel 10 (0-indexed 9).
var drumMap = map[string]uint8{
	"kick":      36,
	"snare":     38,
	"hh_closed": 42,
	"hh_open":   46,
	"tom_low":   43,
	"tom_mid":   47,
	"tom_high":  50,
	"crash":     49,
	"ride":      51,
}

const (
	drumChannel = 9
	drumHit     = 100 * time.Millisecond
)

// NewDrums builds the drum agent. Fills and hat openings are decided at
// construction so the groove stays consistent within a performance.
func NewDrums(responsiveness float64, rng *rand.Rand) *Generator {
	return newGenerator("drums", responsiveness, drumPatterns(rng, responsiveness), resolveDrum)
}

func resolveDrum(ev Event, _ session.Context) []Note {
	pitch, ok := drumMap[ev.Voice]
	if !ok {
		return nil
	}
	return []Note{{
		Pitch:    pitch,
		Velocity: vel(ev.Velocity),
		Channel:  drumChannel,
		Duration: ev.Duration,
	}}
}

func hit(beat, velocity float64, voice string) Event {
	return Event{Beat: beat, Velocity: velocity, Duration: drumHit, Voice: voice}
}

func drumPatterns(rng *rand.Rand, responsiveness float64) map[Key][]Event {
	verse := []Event{
		hit(0, 0.9, "kick"),
		hit(2, 0.85, "kick"),
		hit(1, 0.8, "snare"),
		hit(3, 0.8, "snare"),
	}
	for b := 0.0; b < 4; b += 0.5 {
		verse = append(verse, hit(b, 0.55, "hh_closed"))
	}
	if rng.Float64() < 0.3*responsiveness {
		verse = append(verse, hit(3.5, 0.6, "hh_open"))
	}

	chorus := []Event{hit(0, 0.9, "crash")}
	for _, ev := range verse {
		ev.Velocity *= 1.2
		if ev.Velocity > 1 {
			ev.Velocity = 1
		}
		chorus = append(chorus, ev)
	}
	if rng.Float64() < responsiveness {
		chorus = append(chorus, hit(3.5, 0.7, "tom_mid"), hit(3.75, 0.75, "tom_high"))
	}

	bridge := []Event{
		hit(0, 0.85, "kick"),
		hit(1.5, 0.7, "kick"),
		hit(2.5, 0.75, "kick"),
		hit(1, 0.75, "snare"),
		hit(3, 0.75, "snare"),
	}
	for b := 0.0; b < 4; b++ {
		bridge = append(bridge, hit(b, 0.5, "ride"))
	}

	sparse := []Event{
		hit(0, 0.7, "kick"),
		hit(0, 0.45, "hh_closed"),
		hit(1, 0.45, "hh_closed"),
		hit(2, 0.45, "hh_closed"),
		hit(3, 0.45, "hh_closed"),
	}

	waltz := []Event{
		hit(0, 0.9, "kick"),
		hit(1, 0.7, "snare"),
		hit(2, 0.7, "snare"),
		hit(0, 0.5, "ride"),
		hit(1, 0.5, "ride"),
		hit(2, 0.5, "ride"),
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
