package anim

import (
	"log/slog"
	"math"
	"sync"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/agent"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/session"
)

const (
	strongTolerance = 0.05
	intensityEps    = 1e-3
)

// Controller translates context updates and agent note batches into
// outbound animation messages. Context fields go out only when they
// change; beat messages go out every playing tick. A nil transport
// turns every send into a no-op.
type Controller struct {
	mu        sync.Mutex
	transport Transport

	haveContext   bool
	lastTempo     float64
	lastSection   string
	lastIntensity float64

	strongBar  int
	strongSlot int
}

func NewController(t Transport) *Controller {
	return &Controller{transport: t}
}

// OnContextUpdate runs on the clock tick goroutine and must not block.
func (c *Controller) OnContextUpdate(ctx session.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return
	}

	if !c.haveContext || ctx.Tempo != c.lastTempo {
		c.send("/tempo", float32(ctx.Tempo))
		c.lastTempo = ctx.Tempo
	}
	if !c.haveContext || ctx.Section != c.lastSection {
		c.send("/section", ctx.Section)
		c.lastSection = ctx.Section
	}
	if !c.haveContext || math.Abs(ctx.Dynamics-c.lastIntensity) > intensityEps {
		c.send("/intensity", float32(ctx.Dynamics))
		c.lastIntensity = ctx.Dynamics
	}
	c.haveContext = true

	if !ctx.Playing {
		return
	}
	c.send("/beat", float32(ctx.BeatPosition), int32(ctx.Bar))

	// Strong beats land on the bar start and midpoint. At slow tempos
	// several ticks fall inside the window, so fire once per bar slot.
	slot, beat := -1, 0
	half := float64(ctx.TimeSig.Beats) / 2
	switch {
	case ctx.BeatPosition <= strongTolerance:
		slot, beat = 0, 0
	case math.Abs(ctx.BeatPosition-half) <= strongTolerance:
		slot, beat = 1, int(half)
	}
	if slot >= 0 && (ctx.Bar != c.strongBar || slot != c.strongSlot) {
		c.send("/beat/strong", int32(beat))
		c.strongBar, c.strongSlot = ctx.Bar, slot
	}
}

// AgentNotes folds one batch of simultaneous notes into a single
// intensity/count message, plus one classified hit message per note for
// the drums.
func (c *Controller) AgentNotes(kind string, notes []agent.Note) {
	if len(notes) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return
	}

	total := 0
	for _, n := range notes {
		total += int(n.Velocity)
	}
	avg := float32(total) / float32(len(notes)) / 127
	c.send("/agent/"+kind+"/note", avg, int32(len(notes)))

	if kind != "drums" {
		return
	}
	for _, n := range notes {
		c.send("/agent/drums/hit", DrumClass(n.Pitch), float32(n.Velocity)/127)
	}
}

// Close releases the transport. Safe on a nil transport.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return nil
	}
	t := c.transport
	c.transport = nil
	return t.Close()
}

func (c *Controller) send(addr string, args ...any) {
	if err := c.transport.Send(addr, args...); err != nil {
		slog.Warn("anim: send failed", "address", addr, "err", err)
	}
}

// DrumClass names the animation class for a General MIDI percussion
// pitch.
func DrumClass(pitch uint8) string {
	switch pitch {
	case 36:
		return "kick"
	case 38:
		return "snare"
	case 42, 44, 46:
		return "hihat"
	case 49, 51, 52, 53, 55, 57, 59:
		return "cymbal"
	case 41, 43, 45, 47, 48, 50:
		return "tom"
	default:
		return "other"
	}
}
