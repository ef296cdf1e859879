// Package agent implements the bandmate note generators. Each agent
// follows the shared musical context and emits MIDI-ready notes from
// pattern templates keyed by time signature and song section.
package agent

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/session"
)

// beatTolerance is how close the beat cursor must be to a pattern event
// for it to fire.
const beatTolerance = 0.05

// Note is one generated note, ready for the scheduler.
type Note struct {
	Pitch    uint8
	Velocity uint8
	Channel  uint8
	Duration time.Duration
}

// NoteListener receives each generated batch on the session tick
// goroutine.
type NoteListener func(notes []Note)

// Agent is a bandmate: it reacts to context updates and emits notes.
type Agent interface {
	Type() string
	OnContextUpdate(session.Context)
	AddNoteListener(NoteListener)
	SetActive(bool)
	Active() bool
}

// New builds an agent of the named kind. The rng drives pattern
// variation choices made once at construction.
func New(kind string, responsiveness float64, rng *rand.Rand) (Agent, error) {
	switch kind {
	case "drums":
		return NewDrums(responsiveness, rng), nil
	case "bass":
		return NewBass(responsiveness, rng), nil
	case "keys":
		return NewKeys(responsiveness, rng), nil
	}
	return nil, fmt.Errorf("agent: unknown type %q", kind)
}

// Key selects a pattern.
type Key struct {
	TimeSig string
	Section string
}

// Event is one pattern entry. Voice names a drum; Degree indexes the
// bass scale; keys agents ignore both and voice the current chord.
type Event struct {
	Beat     float64
	Velocity float64
	Duration time.Duration
	Voice    string
	Degree   int
}

// Generator is the shared agent machinery: pattern lookup with
// fallbacks, the fire window, once-per-bar dedup, and dynamics shaping.
// Concrete kinds supply the pattern set and the resolve function.
type Generator struct {
	kind           string
	responsiveness float64
	patterns       map[Key][]Event
	resolve        func(Event, session.Context) []Note

	mu        sync.Mutex
	active    bool
	listeners []NoteListener
	lastKey   Key
	lastFired map[int]int
}

func newGenerator(kind string, responsiveness float64, patterns map[Key][]Event,
	resolve func(Event, session.Context) []Note) *Generator {
	return &Generator{
		kind:           kind,
		responsiveness: responsiveness,
		patterns:       patterns,
		resolve:        resolve,
		active:         true,
		lastFired:      map[int]int{},
	}
}

func (g *Generator) Type() string { return g.kind }

func (g *Generator) AddNoteListener(l NoteListener) {
	g.mu.Lock()
	g.listeners = append(g.listeners, l)
	g.mu.Unlock()
}

func (g *Generator) SetActive(v bool) {
	g.mu.Lock()
	g.active = v
	g.mu.Unlock()
}

func (g *Generator) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// OnContextUpdate fires every pattern event within the beat window once
// per bar and hands the shaped notes to the listeners.
func (g *Generator) OnContextUpdate(ctx session.Context) {
	g.mu.Lock()
	if !g.active || !ctx.Playing {
		g.mu.Unlock()
		return
	}

	key, events := g.patternFor(ctx)
	if key != g.lastKey {
		g.lastKey = key
		g.lastFired = map[int]int{}
	}

	var out []Note
	for i, ev := range events {
		if math.Abs(ctx.BeatPosition-ev.Beat) >= beatTolerance {
			continue
		}
		if g.lastFired[i] == ctx.Bar {
			continue
		}
		g.lastFired[i] = ctx.Bar
		for _, n := range g.resolve(ev, ctx) {
			n.Velocity = shapeVelocity(n.Velocity, ctx.Dynamics)
			out = append(out, n)
		}
	}
	listeners := g.listeners
	g.mu.Unlock()

	if len(out) == 0 {
		return
	}
	slog.Debug("agent: notes generated",
		"agent", g.kind, "count", len(out), "bar", ctx.Bar, "beat", ctx.BeatPosition)
	for _, l := range listeners {
		l(out)
	}
}

// patternFor resolves (time signature, section) with fallback to 4/4,
// then to the 4/4 verse pattern.
func (g *Generator) patternFor(ctx session.Context) (Key, []Event) {
	key := Key{TimeSig: ctx.TimeSig.String(), Section: ctx.Section}
	if evs, ok := g.patterns[key]; ok {
		return key, evs
	}
	key = Key{TimeSig: "4/4", Section: ctx.Section}
	if evs, ok := g.patterns[key]; ok {
		return key, evs
	}
	key = Key{TimeSig: "4/4", Section: session.SectionVerse}
	return key, g.patterns[key]
}

// shapeVelocity follows the room: quiet playing pulls the agents down,
// loud playing pushes them up.
func shapeVelocity(v uint8, dynamics float64) uint8 {
	f := float64(v)
	switch {
	case dynamics < 0.3:
		f *= 0.7
	case dynamics > 0.7:
		f *= 1.2
	}
	if f > 127 {
		f = 127
	}
	if f < 1 {
		f = 1
	}
	return uint8(f)
}

// vel converts a 0..1 pattern velocity to MIDI range.
func vel(x float64) uint8 {
	v := math.Round(x * 127)
	if v > 127 {
		v = 127
	}
	if v < 1 {
		v = 1
	}
	return uint8(v)
}
