// Package midigen turns generated notes into MIDI output: note-ons go
// out immediately, note-offs are held in a timer heap until due. Every
// note tracked here is guaranteed a matching off, shutdown included.
package midigen

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/SplinteredSunlight/PerformanceSuite/internal/agent"
)

// Sender delivers one MIDI message to the output device.
type Sender func(midi.Message) error

// NopSender swallows messages; it stands in when no port is available
// so the rest of the pipeline keeps running.
func NopSender() Sender {
	return func(midi.Message) error { return nil }
}

type noteKey struct {
	ch    uint8
	pitch uint8
}

type pendingOff struct {
	key   noteKey
	dueAt time.Time
	index int
}

// offHeap orders pending note-offs by due time.
type offHeap []*pendingOff

func (h offHeap) Len() int            { return len(h) }
func (h offHeap) Less(i, j int) bool  { return h[i].dueAt.Before(h[j].dueAt) }
func (h offHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *offHeap) Push(x interface{}) {
	po := x.(*pendingOff)
	po.index = len(*h)
	*h = append(*h, po)
}
func (h *offHeap) Pop() interface{} {
	old := *h
	n := len(old)
	po := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return po
}

// Scheduler owns the active-note set and the pending-off heap. A 1 ms
// timer loop flushes due offs. Retriggering a sounding note chokes it
// (immediate off, then the new on) and re-times its single pending off
// in place, so there is never more than one off queued per note.
type Scheduler struct {
	send Sender

	mu      sync.Mutex
	active  map[noteKey]uint8
	pending map[noteKey]*pendingOff
	offs    offHeap

	stop chan struct{}
	done chan struct{}
}

func NewScheduler(send Sender) *Scheduler {
	if send == nil {
		send = NopSender()
	}
	return &Scheduler{
		send:    send,
		active:  map[noteKey]uint8{},
		pending: map[noteKey]*pendingOff{},
	}
}

// Start launches the timer loop.
func (s *Scheduler) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
}

// Stop halts the loop and releases everything still sounding.
func (s *Scheduler) Stop() {
	if s.stop != nil {
		close(s.stop)
		select {
		case <-s.done:
		case <-time.After(time.Second):
			slog.Warn("midi: scheduler loop did not stop in time")
		}
		s.stop = nil
	}
	s.AllNotesOff()
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.flushDue(now)
		}
	}
}

// PlayNote sends the note-on now and queues its off after duration.
func (s *Scheduler) PlayNote(channel, pitch, velocity uint8, duration time.Duration) {
	due := time.Now().Add(duration)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playLocked(channel, pitch, velocity, due)
}

// ProcessNotes plays one tick's batch under a single lock hold.
func (s *Scheduler) ProcessNotes(notes []agent.Note) {
	if len(notes) == 0 {
		return
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		s.playLocked(n.Channel, n.Pitch, n.Velocity, now.Add(n.Duration))
	}
}

func (s *Scheduler) playLocked(channel, pitch, velocity uint8, due time.Time) {
	if velocity == 0 {
		velocity = 1
	}
	k := noteKey{ch: channel, pitch: pitch}

	if _, sounding := s.active[k]; sounding {
		s.sendLocked(midi.NoteOff(k.ch, k.pitch))
	}
	s.sendLocked(midi.NoteOn(channel, pitch, velocity))
	s.active[k] = velocity

	if po, ok := s.pending[k]; ok {
		po.dueAt = due
		heap.Fix(&s.offs, po.index)
	} else {
		po := &pendingOff{key: k, dueAt: due}
		heap.Push(&s.offs, po)
		s.pending[k] = po
	}
}

// NoteOn sends a bare note-on and tracks it with no scheduled release;
// the caller owns the eventual NoteOff. Any pending timed off for the
// note is dropped so the timer cannot cut the new voice short.
func (s *Scheduler) NoteOn(channel, pitch, velocity uint8) {
	if velocity == 0 {
		velocity = 1
	}
	k := noteKey{ch: channel, pitch: pitch}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, sounding := s.active[k]; sounding {
		s.sendLocked(midi.NoteOff(k.ch, k.pitch))
	}
	s.sendLocked(midi.NoteOn(channel, pitch, velocity))
	s.active[k] = velocity
	if po, ok := s.pending[k]; ok {
		heap.Remove(&s.offs, po.index)
		delete(s.pending, k)
	}
}

// NoteOff releases a sounding note now, cancelling its pending timed
// off if one exists. Notes not being tracked are ignored.
func (s *Scheduler) NoteOff(channel, pitch uint8) {
	k := noteKey{ch: channel, pitch: pitch}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, sounding := s.active[k]; !sounding {
		return
	}
	s.sendLocked(midi.NoteOff(k.ch, k.pitch))
	delete(s.active, k)
	if po, ok := s.pending[k]; ok {
		heap.Remove(&s.offs, po.index)
		delete(s.pending, k)
	}
}

// flushDue pops and fires every off that is due at t.
func (s *Scheduler) flushDue(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.offs.Len() > 0 && !t.Before(s.offs[0].dueAt) {
		po := heap.Pop(&s.offs).(*pendingOff)
		delete(s.pending, po.key)
		if _, sounding := s.active[po.key]; sounding {
			s.sendLocked(midi.NoteOff(po.key.ch, po.key.pitch))
			delete(s.active, po.key)
		}
	}
}

// AllNotesOff releases every tracked note exactly once and clears all
// scheduling state.
func (s *Scheduler) AllNotesOff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.active) > 0 {
		slog.Info("midi: releasing all notes", "count", len(s.active))
	}
	for k := range s.active {
		s.sendLocked(midi.NoteOff(k.ch, k.pitch))
	}
	s.active = map[noteKey]uint8{}
	s.pending = map[noteKey]*pendingOff{}
	s.offs = s.offs[:0]
}

// SendControlChange passes a CC through with the scheduler's error
// handling.
func (s *Scheduler) SendControlChange(channel, controller, value uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(midi.ControlChange(channel, controller, value))
}

// SendProgramChange switches the patch on a channel.
func (s *Scheduler) SendProgramChange(channel, program uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(midi.ProgramChange(channel, program))
}

// ActiveNotes reports how many notes are currently sounding.
func (s *Scheduler) ActiveNotes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) sendLocked(msg midi.Message) {
	if err := s.send(msg); err != nil {
		slog.Warn("midi: send failed", "err", err)
	}
}
