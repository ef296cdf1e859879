package anim

import (
	"math"
	"testing"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/agent"
	"github.com/SplinteredSunlight/PerformanceSuite/internal/session"
)

type sentMessage struct {
	addr string
	args []any
}

type recordingTransport struct {
	sends  []sentMessage
	closed bool
}

func (r *recordingTransport) Send(addr string, args ...any) error {
	r.sends = append(r.sends, sentMessage{addr: addr, args: args})
	return nil
}

func (r *recordingTransport) Close() error {
	r.closed = true
	return nil
}

func (r *recordingTransport) count(addr string) int {
	n := 0
	for _, m := range r.sends {
		if m.addr == addr {
			n++
		}
	}
	return n
}

func (r *recordingTransport) last(addr string) (sentMessage, bool) {
	for i := len(r.sends) - 1; i >= 0; i-- {
		if r.sends[i].addr == addr {
			return r.sends[i], true
		}
	}
	return sentMessage{}, false
}

func playingCtx() session.Context {
	ctx := session.DefaultContext()
	ctx.Playing = true
	return ctx
}

func TestContextDeltasOnlyOnChange(t *testing.T) {
	rec := &recordingTransport{}
	c := NewController(rec)

	ctx := playingCtx()
	c.OnContextUpdate(ctx)
	for _, addr := range []string{"/tempo", "/section", "/intensity"} {
		if got := rec.count(addr); got != 1 {
			t.Fatalf("first update sent %s %d times, want 1", addr, got)
		}
	}

	// Unchanged fields stay quiet.
	c.OnContextUpdate(ctx)
	for _, addr := range []string{"/tempo", "/section", "/intensity"} {
		if got := rec.count(addr); got != 1 {
			t.Errorf("unchanged %s re-sent (%d times)", addr, got)
		}
	}

	ctx.Tempo = 140
	c.OnContextUpdate(ctx)
	if got := rec.count("/tempo"); got != 2 {
		t.Errorf("/tempo after change sent %d times, want 2", got)
	}
	if got := rec.count("/section"); got != 1 {
		t.Errorf("/section re-sent alongside tempo change (%d times)", got)
	}

	ctx.Section = session.SectionChorus
	ctx.Dynamics = 0.8
	c.OnContextUpdate(ctx)
	if got := rec.count("/section"); got != 2 {
		t.Errorf("/section after change sent %d times, want 2", got)
	}
	if got := rec.count("/intensity"); got != 2 {
		t.Errorf("/intensity after change sent %d times, want 2", got)
	}
}

func TestBeatSentEveryPlayingTickOnly(t *testing.T) {
	rec := &recordingTransport{}
	c := NewController(rec)

	ctx := playingCtx()
	for i := 0; i < 5; i++ {
		ctx.BeatPosition = float64(i) * 0.5
		c.OnContextUpdate(ctx)
	}
	if got := rec.count("/beat"); got != 5 {
		t.Errorf("/beat sent %d times over 5 playing ticks, want 5", got)
	}

	ctx.Playing = false
	c.OnContextUpdate(ctx)
	if got := rec.count("/beat"); got != 5 {
		t.Errorf("/beat sent while stopped")
	}
}

func TestStrongBeatsAtBarStartAndMidpoint(t *testing.T) {
	rec := &recordingTransport{}
	c := NewController(rec)

	ctx := playingCtx()
	for _, pos := range []float64{0, 0.04, 1.0, 1.97, 2.0, 2.04, 3.0} {
		ctx.BeatPosition = pos
		c.OnContextUpdate(ctx)
	}
	if got := rec.count("/beat/strong"); got != 2 {
		t.Fatalf("/beat/strong sent %d times in one bar, want 2", got)
	}
	last, _ := rec.last("/beat/strong")
	if beat := last.args[0].(int32); beat != 2 {
		t.Errorf("midpoint strong beat = %d, want 2", beat)
	}

	// Next bar fires the downbeat again.
	ctx.Bar = 2
	ctx.BeatPosition = 0
	c.OnContextUpdate(ctx)
	if got := rec.count("/beat/strong"); got != 3 {
		t.Errorf("/beat/strong sent %d times after bar change, want 3", got)
	}
}

func TestAgentBatchIntensityAndCount(t *testing.T) {
	rec := &recordingTransport{}
	c := NewController(rec)

	c.AgentNotes("bass", []agent.Note{
		{Pitch: 36, Velocity: 100, Channel: 0},
		{Pitch: 43, Velocity: 54, Channel: 0},
	})
	msg, ok := rec.last("/agent/bass/note")
	if !ok {
		t.Fatal("no /agent/bass/note sent")
	}
	wantAvg := (100.0 + 54.0) / 2 / 127
	if got := msg.args[0].(float32); math.Abs(float64(got)-wantAvg) > 1e-6 {
		t.Errorf("batch intensity = %v, want %v", got, wantAvg)
	}
	if got := msg.args[1].(int32); got != 2 {
		t.Errorf("batch count = %d, want 2", got)
	}
	if got := rec.count("/agent/drums/hit"); got != 0 {
		t.Errorf("melodic agent emitted %d drum hits", got)
	}

	// Empty batches are dropped.
	before := len(rec.sends)
	c.AgentNotes("bass", nil)
	if len(rec.sends) != before {
		t.Error("empty batch produced messages")
	}
}

func TestDrumBatchEmitsClassifiedHits(t *testing.T) {
	rec := &recordingTransport{}
	c := NewController(rec)

	c.AgentNotes("drums", []agent.Note{
		{Pitch: 36, Velocity: 127, Channel: 9},
		{Pitch: 38, Velocity: 100, Channel: 9},
		{Pitch: 42, Velocity: 80, Channel: 9},
	})
	if got := rec.count("/agent/drums/note"); got != 1 {
		t.Errorf("/agent/drums/note sent %d times, want 1", got)
	}
	if got := rec.count("/agent/drums/hit"); got != 3 {
		t.Fatalf("/agent/drums/hit sent %d times, want one per note", got)
	}

	var classes []string
	for _, m := range rec.sends {
		if m.addr == "/agent/drums/hit" {
			classes = append(classes, m.args[0].(string))
		}
	}
	want := []string{"kick", "snare", "hihat"}
	for i := range want {
		if classes[i] != want[i] {
			t.Errorf("hit %d classified %q, want %q", i, classes[i], want[i])
		}
	}
	hit, _ := rec.last("/agent/drums/hit")
	if vel := hit.args[1].(float32); vel <= 0 || vel > 1 {
		t.Errorf("hit velocity = %v, want in (0,1]", vel)
	}
}

func TestDrumClassTable(t *testing.T) {
	cases := []struct {
		pitch uint8
		want  string
	}{
		{36, "kick"},
		{38, "snare"},
		{42, "hihat"}, {44, "hihat"}, {46, "hihat"},
		{49, "cymbal"}, {51, "cymbal"}, {53, "cymbal"}, {57, "cymbal"},
		{41, "tom"}, {45, "tom"}, {48, "tom"}, {50, "tom"},
		{35, "other"}, {60, "other"}, {0, "other"},
	}
	for _, tc := range cases {
		if got := DrumClass(tc.pitch); got != tc.want {
			t.Errorf("DrumClass(%d) = %q, want %q", tc.pitch, got, tc.want)
		}
	}
}

func TestNilTransportIsNoOp(t *testing.T) {
	c := NewController(nil)
	c.OnContextUpdate(playingCtx())
	c.AgentNotes("drums", []agent.Note{{Pitch: 36, Velocity: 100}})
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil transport: %v", err)
	}
}

func TestCloseStopsSends(t *testing.T) {
	rec := &recordingTransport{}
	c := NewController(rec)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rec.closed {
		t.Error("transport not closed")
	}
	c.OnContextUpdate(playingCtx())
	c.AgentNotes("drums", []agent.Note{{Pitch: 36, Velocity: 100}})
	if len(rec.sends) != 0 {
		t.Errorf("sends after Close: %d", len(rec.sends))
	}
}
