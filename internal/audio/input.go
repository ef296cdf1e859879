// Package audio captures input from a sound device into a bounded ring
// buffer that the analysis loop drains at its own pace.
package audio

import (
	"errors"
	"log/slog"
	"math"
	"sync"
)

// Stats is a snapshot of input level and health counters.
type Stats struct {
	Peak     float64
	RMS      float64
	Clipping bool
	Dropouts uint64
}

const clipThreshold = 0.99

// Input owns the sample ring. The driver callback appends under a mutex
// held only for the copy; everything else happens on the caller's side.
type Input struct {
	cfg StreamConfig
	drv Driver

	mu      sync.Mutex
	ring    []float32 // mono samples
	start   int
	n       int
	stats   Stats
	running bool

	stream Stream
}

// NewInput prepares an input for the given stream. The ring holds four
// driver buffers of mono samples; older samples are dropped on overflow.
func NewInput(cfg StreamConfig, drv Driver) *Input {
	return &Input{
		cfg:  cfg,
		drv:  drv,
		ring: make([]float32, cfg.BufferSize*4),
	}
}

// Start opens and starts the capture stream.
func (in *Input) Start() error {
	in.mu.Lock()
	if in.running {
		in.mu.Unlock()
		return errors.New("audio: already running")
	}
	in.mu.Unlock()

	stream, err := in.drv.Open(in.cfg, in.ingest)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return err
	}

	in.mu.Lock()
	in.stream = stream
	in.running = true
	in.mu.Unlock()

	slog.Info("audio: input started",
		"sample_rate", in.cfg.SampleRate,
		"buffer_size", in.cfg.BufferSize,
		"channels", in.cfg.Channels,
	)
	return nil
}

// Stop stops and closes the stream. Safe to call when not running.
func (in *Input) Stop() {
	in.mu.Lock()
	stream := in.stream
	in.stream = nil
	in.running = false
	in.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Stop(); err != nil {
		slog.Warn("audio: stop failed", "err", err)
	}
	if err := stream.Close(); err != nil {
		slog.Warn("audio: close failed", "err", err)
	}
	slog.Info("audio: input stopped")
}

// Running reports whether the capture stream is active.
func (in *Input) Running() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.running
}

// MarkStopped records that the stream died underneath us (the supervisor
// uses this before a restart attempt).
func (in *Input) MarkStopped() {
	in.mu.Lock()
	if in.stream != nil {
		_ = in.stream.Close()
		in.stream = nil
	}
	in.running = false
	in.mu.Unlock()
}

// ingest is the driver callback. It folds interleaved channels to mono,
// updates level stats, and appends to the ring, dropping oldest on
// overflow.
func (in *Input) ingest(samples []float32, overflowed bool) {
	if len(samples) == 0 {
		return
	}

	ch := in.cfg.Channels
	if ch < 1 {
		ch = 1
	}

	var peak, sumsq float64

	in.mu.Lock()
	if overflowed {
		in.stats.Dropouts++
	}
	for i := 0; i+ch <= len(samples); i += ch {
		var v float32
		for c := 0; c < ch; c++ {
			v += samples[i+c]
		}
		v /= float32(ch)

		a := math.Abs(float64(v))
		if a > peak {
			peak = a
		}
		sumsq += float64(v) * float64(v)

		if in.n == len(in.ring) {
			in.start = (in.start + 1) % len(in.ring)
			in.n--
			in.stats.Dropouts++
		}
		in.ring[(in.start+in.n)%len(in.ring)] = v
		in.n++
	}
	frames := len(samples) / ch
	if frames > 0 {
		in.stats.Peak = peak
		in.stats.RMS = math.Sqrt(sumsq / float64(frames))
		in.stats.Clipping = peak >= clipThreshold
	}
	in.mu.Unlock()
}

// Drain appends every buffered sample to dst and clears the ring.
func (in *Input) Drain(dst []float32) []float32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := 0; i < in.n; i++ {
		dst = append(dst, in.ring[(in.start+i)%len(in.ring)])
	}
	in.start, in.n = 0, 0
	return dst
}

// Buffered reports how many mono samples are waiting.
func (in *Input) Buffered() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.n
}

// Stats returns a copy of the current level stats.
func (in *Input) Stats() Stats {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stats
}
