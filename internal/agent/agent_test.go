package agent

import (
	"math/rand"
	"testing"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/session"
)

func playingCtx() session.Context {
	ctx := session.DefaultContext()
	ctx.Playing = true
	return ctx
}

func collect(a Agent) *[]Note {
	notes := &[]Note{}
	a.AddNoteListener(func(batch []Note) { *notes = append(*notes, batch...) })
	return notes
}

func TestDrumsFireOnDownbeat(t *testing.T) {
	drums := NewDrums(0.7, rand.New(rand.NewSource(1)))
	got := collect(drums)

	ctx := playingCtx()
	ctx.BeatPosition = 0
	drums.OnContextUpdate(ctx)

	if len(*got) < 2 {
		t.Fatalf("got %d notes on the downbeat, want kick plus hat", len(*got))
	}
	sawKick := false
	for _, n := range *got {
		if n.Channel != 9 {
			t.Errorf("drum note on channel %d, want 9", n.Channel)
		}
		if n.Velocity < 1 || n.Velocity > 127 {
			t.Errorf("velocity %d out of MIDI range", n.Velocity)
		}
		if n.Pitch == 36 {
			sawKick = true
		}
	}
	if !sawKick {
		t.Error("no kick (36) on the downbeat")
	}
}

func TestEventFiresOncePerBar(t *testing.T) {
	drums := NewDrums(0.7, rand.New(rand.NewSource(1)))
	got := collect(drums)

	ctx := playingCtx()
	ctx.BeatPosition = 0
	drums.OnContextUpdate(ctx)
	first := len(*got)
	if first == 0 {
		t.Fatal("no notes on first update")
	}

	// Next tick still inside the window must not re-fire.
	ctx.BeatPosition = 0.04
	drums.OnContextUpdate(ctx)
	if len(*got) != first {
		t.Errorf("event re-fired within the same bar: %d -> %d notes", first, len(*got))
	}

	// Same position in the next bar fires again.
	ctx.Bar = 2
	ctx.BeatPosition = 0.01
	drums.OnContextUpdate(ctx)
	if len(*got) <= first {
		t.Error("event did not fire in the next bar")
	}
}

func TestSilentWhenStopped(t *testing.T) {
	drums := NewDrums(0.7, rand.New(rand.NewSource(1)))
	got := collect(drums)

	ctx := playingCtx()
	ctx.Playing = false
	ctx.BeatPosition = 0
	drums.OnContextUpdate(ctx)
	if len(*got) != 0 {
		t.Errorf("stopped context produced %d notes", len(*got))
	}
}

func TestSilentWhenInactive(t *testing.T) {
	drums := NewDrums(0.7, rand.New(rand.NewSource(1)))
	got := collect(drums)
	drums.SetActive(false)

	ctx := playingCtx()
	ctx.BeatPosition = 0
	drums.OnContextUpdate(ctx)
	if len(*got) != 0 {
		t.Errorf("inactive agent produced %d notes", len(*got))
	}
	if drums.Active() {
		t.Error("Active() = true after SetActive(false)")
	}
}

func TestDynamicsScaleVelocities(t *testing.T) {
	sum := func(dynamics float64) int {
		drums := NewDrums(0.7, rand.New(rand.NewSource(1)))
		got := collect(drums)
		ctx := playingCtx()
		ctx.BeatPosition = 0
		ctx.Dynamics = dynamics
		drums.OnContextUpdate(ctx)
		total := 0
		for _, n := range *got {
			total += int(n.Velocity)
		}
		return total
	}

	quiet, mid, loud := sum(0.1), sum(0.5), sum(0.9)
	if !(quiet < mid && mid < loud) {
		t.Errorf("velocity sums quiet=%d mid=%d loud=%d, want strictly increasing", quiet, mid, loud)
	}
}

func TestUnknownTimeSignatureFallsBack(t *testing.T) {
	drums := NewDrums(0.7, rand.New(rand.NewSource(1)))
	got := collect(drums)

	ctx := playingCtx()
	ctx.TimeSig = session.TimeSignature{Beats: 7, Unit: 8}
	ctx.BeatPosition = 0
	drums.OnContextUpdate(ctx)
	if len(*got) == 0 {
		t.Error("no notes for 7/8, want 4/4 fallback pattern")
	}
}

func TestSectionChangeResetsDedup(t *testing.T) {
	drums := NewDrums(0.7, rand.New(rand.NewSource(1)))
	got := collect(drums)

	ctx := playingCtx()
	ctx.BeatPosition = 0
	drums.OnContextUpdate(ctx)
	first := len(*got)

	ctx.Section = session.SectionChorus
	ctx.BeatPosition = 0.01
	drums.OnContextUpdate(ctx)
	if len(*got) <= first {
		t.Error("no notes after section change within the same bar")
	}
}

func TestBassFollowsChordRoot(t *testing.T) {
	cases := []struct {
		key   string
		chord string
		want  uint8
	}{
		{"C", "C", 36},   // root stays put
		{"C", "Am", 33},  // down a minor third, not up a sixth
		{"C", "F", 41},   // up a fourth
		{"C", "B", 35},   // wraps down a semitone
		{"C", "F#m", 42}, // tritone goes up
		{"D", "D", 38},
	}
	for _, tc := range cases {
		ctx := playingCtx()
		ctx.Key = tc.key
		ctx.Chord = tc.chord
		notes := resolveBass(Event{Degree: 0, Velocity: 0.8}, ctx)
		if len(notes) != 1 {
			t.Fatalf("key %s chord %s: got %d notes, want 1", tc.key, tc.chord, len(notes))
		}
		if notes[0].Pitch != tc.want {
			t.Errorf("key %s chord %s: pitch = %d, want %d", tc.key, tc.chord, notes[0].Pitch, tc.want)
		}
		if notes[0].Channel != bassChannel {
			t.Errorf("bass channel = %d, want %d", notes[0].Channel, bassChannel)
		}
	}
}

func TestBassDegreeOutOfRange(t *testing.T) {
	ctx := playingCtx()
	notes := resolveBass(Event{Degree: 42, Velocity: 0.8}, ctx)
	if notes[0].Pitch != 36 {
		t.Errorf("out-of-range degree resolved to %d, want root 36", notes[0].Pitch)
	}
}

func TestKeysVoiceTriads(t *testing.T) {
	cases := []struct {
		chord string
		want  [3]uint8
	}{
		{"C", [3]uint8{60, 64, 67}},
		{"Cm", [3]uint8{60, 63, 67}},
		{"G", [3]uint8{67, 71, 74}},
		{"Am", [3]uint8{69, 72, 76}},
	}
	for _, tc := range cases {
		ctx := playingCtx()
		ctx.Chord = tc.chord
		notes := resolveKeys(Event{Velocity: 0.6}, ctx)
		if len(notes) != 3 {
			t.Fatalf("chord %s: got %d notes, want triad", tc.chord, len(notes))
		}
		for i, want := range tc.want {
			if notes[i].Pitch != want {
				t.Errorf("chord %s note %d = %d, want %d", tc.chord, i, notes[i].Pitch, want)
			}
			if notes[i].Channel != keysChannel {
				t.Errorf("keys channel = %d, want %d", notes[i].Channel, keysChannel)
			}
		}
	}
}

func TestKeysFallBackToKeyTriad(t *testing.T) {
	ctx := playingCtx()
	ctx.Chord = "??"
	ctx.Key = "G"
	notes := resolveKeys(Event{Velocity: 0.6}, ctx)
	if notes[0].Pitch != 67 || notes[1].Pitch != 71 || notes[2].Pitch != 74 {
		t.Errorf("fallback triad = %d %d %d, want G major 67 71 74",
			notes[0].Pitch, notes[1].Pitch, notes[2].Pitch)
	}
}

func TestShapeVelocity(t *testing.T) {
	cases := []struct {
		vel      uint8
		dynamics float64
		want     uint8
	}{
		{100, 0.5, 100}, // neutral band untouched
		{100, 0.2, 70},  // quiet room pulls down
		{100, 0.29, 70},
		{100, 0.8, 120}, // loud room pushes up
		{110, 0.9, 127}, // capped
		{1, 0.1, 1},     // floor
	}
	for _, tc := range cases {
		if got := shapeVelocity(tc.vel, tc.dynamics); got != tc.want {
			t.Errorf("shapeVelocity(%d, %v) = %d, want %d", tc.vel, tc.dynamics, got, tc.want)
		}
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := New("theremin", 0.5, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("New accepted an unknown agent kind")
	}
	for _, kind := range []string{"drums", "bass", "keys"} {
		a, err := New(kind, 0.5, rand.New(rand.NewSource(1)))
		if err != nil {
			t.Fatalf("New(%q): %v", kind, err)
		}
		if a.Type() != kind {
			t.Errorf("Type() = %q, want %q", a.Type(), kind)
		}
	}
}
