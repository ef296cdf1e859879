package anim

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"go.bug.st/serial"
)

const (
	sofA       = 0xAA
	sofB       = 0x55
	cmdAnimate = 0x10
)

// Wire event IDs for the fixed animation message set.
const (
	evTempo      = 0x01
	evIntensity  = 0x02
	evSection    = 0x03
	evBeat       = 0x04
	evStrongBeat = 0x05
	evAgentNote  = 0x06
	evDrumHit    = 0x07
)

var agentIDs = map[string]byte{
	"drums": 0x00,
	"bass":  0x01,
	"keys":  0x02,
}

var symbolIDs = map[string]byte{
	"intro":  0x00,
	"verse":  0x01,
	"chorus": 0x02,
	"bridge": 0x03,
	"outro":  0x04,
	"kick":   0x10,
	"snare":  0x11,
	"hihat":  0x12,
	"cymbal": 0x13,
	"tom":    0x14,
}

const symbolUnknown = 0xFF

// animFrame is one animation command for the lighting microcontroller.
// On-wire layout:
//
//	[SOFA][SOFB][LEN][CMD][EVENT][payload...][SEQ][CKS]
//
// LEN counts every byte between itself and CKS; CKS is the XOR of LEN
// and all counted bytes.
type animFrame struct {
	Event   byte
	Payload []byte
	Seq     byte
}

func (f *animFrame) encode() []byte {
	length := byte(len(f.Payload) + 3) // CMD + EVENT + SEQ
	cks := length ^ cmdAnimate ^ f.Event
	for _, b := range f.Payload {
		cks ^= b
	}
	cks ^= f.Seq

	out := make([]byte, 0, int(length)+5)
	out = append(out, sofA, sofB, length, cmdAnimate, f.Event)
	out = append(out, f.Payload...)
	out = append(out, f.Seq, cks)
	return out
}

// frameFor maps an addressed message onto a wire frame. Addresses with
// no wire representation return ok=false and are skipped silently.
func frameFor(addr string, args []any, seq byte) (animFrame, bool) {
	f := animFrame{Seq: seq}
	switch {
	case addr == "/tempo":
		f.Event = evTempo
	case addr == "/intensity":
		f.Event = evIntensity
	case addr == "/section":
		f.Event = evSection
	case addr == "/beat":
		f.Event = evBeat
	case addr == "/beat/strong":
		f.Event = evStrongBeat
	case addr == "/agent/drums/hit":
		f.Event = evDrumHit
	case strings.HasPrefix(addr, "/agent/") && strings.HasSuffix(addr, "/note"):
		f.Event = evAgentNote
		kind := strings.TrimSuffix(strings.TrimPrefix(addr, "/agent/"), "/note")
		id, ok := agentIDs[kind]
		if !ok {
			id = symbolUnknown
		}
		f.Payload = append(f.Payload, id)
	default:
		return animFrame{}, false
	}
	for _, a := range args {
		f.Payload = append(f.Payload, encodeArg(a)...)
	}
	return f, true
}

// encodeArg packs one argument: floats as big-endian uint16
// centivalues, ints as raw uint16, known symbols as one table byte.
func encodeArg(a any) []byte {
	switch v := a.(type) {
	case float32:
		return centiBytes(float64(v))
	case float64:
		return centiBytes(v)
	case int:
		return uint16Bytes(uint16(clampInt(v, 0, math.MaxUint16)))
	case int32:
		return uint16Bytes(uint16(clampInt(int(v), 0, math.MaxUint16)))
	case string:
		id, ok := symbolIDs[v]
		if !ok {
			id = symbolUnknown
		}
		return []byte{id}
	default:
		return nil
	}
}

func centiBytes(v float64) []byte {
	c := int(math.Round(v * 100))
	return uint16Bytes(uint16(clampInt(c, 0, math.MaxUint16)))
}

func uint16Bytes(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SerialTransport frames each message for a microcontroller on a
// serial line.
type SerialTransport struct {
	mu   sync.Mutex
	port serial.Port
	seq  byte
}

func NewSerialTransport(device string, baud int) (*SerialTransport, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("anim: open serial %s: %w", device, err)
	}
	slog.Info("anim: serial transport open", "device", device, "baud", baud)
	return &SerialTransport{port: port}, nil
}

func (t *SerialTransport) Send(addr string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := frameFor(addr, args, t.seq)
	if !ok {
		return nil
	}
	t.seq++
	if _, err := t.port.Write(f.encode()); err != nil {
		return fmt.Errorf("anim: serial write: %w", err)
	}
	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	slog.Info("anim: closing serial transport")
	return t.port.Close()
}
