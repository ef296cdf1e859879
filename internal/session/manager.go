package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/analysis"
)

// ContextListener receives a context snapshot once per tick, on the tick
// goroutine. Listeners must not block.
type ContextListener func(Context)

const cmdQueueDepth = 64

// Manager runs the musical clock. Each tick drains queued commands in
// arrival order, merges the latest feature snapshot, advances the beat,
// and notifies listeners in registration order.
type Manager struct {
	rate float64

	mu      sync.Mutex
	ctx     Context
	pending *analysis.Snapshot

	cmds      chan Command
	listeners []ContextListener

	stop chan struct{}
	done chan struct{}
}

// NewManager creates a stopped manager ticking at rate Hz once started.
func NewManager(rate float64) *Manager {
	return &Manager{
		rate: rate,
		ctx:  DefaultContext(),
		cmds: make(chan Command, cmdQueueDepth),
	}
}

// AddListener registers a listener. Call before Start; notification
// order is registration order.
func (m *Manager) AddListener(l ContextListener) {
	m.listeners = append(m.listeners, l)
}

// Apply enqueues a command for the next tick. When the queue is full the
// command is dropped with a warning rather than blocking the caller.
func (m *Manager) Apply(cmd Command) {
	select {
	case m.cmds <- cmd:
	default:
		slog.Warn("session: command queue full, dropping", "type", cmd.Type.String())
	}
}

// UpdateFeatures parks the newest analysis snapshot for the next tick.
// Within one tick interval the last snapshot wins.
func (m *Manager) UpdateFeatures(s analysis.Snapshot) {
	m.mu.Lock()
	m.pending = &s
	m.mu.Unlock()
}

// Snapshot returns a copy of the current context.
func (m *Manager) Snapshot() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Context {
	snap := m.ctx
	snap.Progression = append([]string(nil), m.ctx.Progression...)
	return snap
}

// Start launches the tick loop.
func (m *Manager) Start() {
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop()
	slog.Info("session: clock started", "rate_hz", m.rate)
}

// Stop halts the tick loop, waiting up to a second for it to exit.
func (m *Manager) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	select {
	case <-m.done:
	case <-time.After(time.Second):
		slog.Warn("session: tick loop did not stop in time")
	}
	m.stop = nil
	slog.Info("session: clock stopped")
}

func (m *Manager) loop() {
	defer close(m.done)
	ticker := time.NewTicker(time.Duration(float64(time.Second) / m.rate))
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.runTick()
		}
	}
}

// runTick performs one clock step. Exposed to tests via direct call; the
// loop goroutine is its only runtime caller.
func (m *Manager) runTick() {
	m.mu.Lock()
	m.drainCommands()
	m.mergeFeatures()
	m.advanceBeat()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	for _, l := range m.listeners {
		l(snap)
	}
}

func (m *Manager) drainCommands() {
	for {
		select {
		case cmd := <-m.cmds:
			m.applyLocked(cmd)
		default:
			return
		}
	}
}

func (m *Manager) applyLocked(cmd Command) {
	switch cmd.Type {
	case CmdStart:
		m.ctx.Playing = true
		m.ctx.BeatPosition = 0
		m.ctx.Bar = 1
		slog.Info("session: performance started", "tempo", m.ctx.Tempo, "section", m.ctx.Section)
	case CmdStop:
		m.ctx.Playing = false
		slog.Info("session: performance stopped", "bar", m.ctx.Bar)
	case CmdTempo:
		if cmd.Tempo < minTempo || cmd.Tempo > maxTempo {
			slog.Warn("session: tempo out of range, ignoring", "tempo", cmd.Tempo)
			return
		}
		m.ctx.Tempo = cmd.Tempo
	case CmdSection:
		if !ValidSection(cmd.Section) {
			slog.Warn("session: unknown section, falling back to verse", "section", cmd.Section)
			m.ctx.Section = SectionVerse
			return
		}
		m.ctx.Section = cmd.Section
	case CmdKey:
		if !validKey(cmd.Key) {
			slog.Warn("session: unknown key, ignoring", "key", cmd.Key)
			return
		}
		m.ctx.Key = cmd.Key
	case CmdChord:
		m.setChordLocked(cmd.Chord)
	}
}

func (m *Manager) setChordLocked(chord string) {
	if chord == "" || chord == m.ctx.Chord {
		return
	}
	m.ctx.Chord = chord
	m.ctx.Progression = append(m.ctx.Progression, chord)
	if len(m.ctx.Progression) > progressionMax {
		m.ctx.Progression = m.ctx.Progression[len(m.ctx.Progression)-progressionMax:]
	}
}

// mergeFeatures folds the parked snapshot into the context. Features
// with zero confidence leave their fields untouched.
func (m *Manager) mergeFeatures() {
	s := m.pending
	if s == nil {
		return
	}
	m.pending = nil

	if s.Tempo.Confidence > 0 {
		bpm := s.Tempo.BPM
		if bpm < minTempo {
			bpm = minTempo
		} else if bpm > maxTempo {
			bpm = maxTempo
		}
		m.ctx.Tempo = bpm
	}
	m.ctx.Dynamics = s.Dynamics.Value
	if len(s.Chords.Labels) > 0 && s.Chords.Confidence > 0 {
		m.setChordLocked(s.Chords.Labels[0])
	}
}

// advanceBeat moves the beat cursor by one tick's worth of beats and
// wraps it into the current bar.
func (m *Manager) advanceBeat() {
	if !m.ctx.Playing {
		return
	}
	m.ctx.BeatPosition += (m.ctx.Tempo / 60) / m.rate
	beatsPerBar := float64(m.ctx.TimeSig.Beats)
	for m.ctx.BeatPosition >= beatsPerBar {
		m.ctx.BeatPosition -= beatsPerBar
		m.ctx.Bar++
	}
}
